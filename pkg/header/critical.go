package header

import (
	"errors"
	"fmt"
)

// ErrCriticalParameter is returned when a header's "crit" list cannot
// be honored. Consumers must fail closed in this case: a critical
// parameter that is not understood invalidates the whole object.
var ErrCriticalParameter = errors.New("header: unsupported critical parameter")

// EnsureCriticalUnderstood validates the "crit" parameter of a
// protected header against the set of extension parameter names the
// consumer understands, per RFC 7515 Section 4.1.11:
//
//   - every listed name must be understood by the consumer,
//   - every listed name must be present in the header,
//   - registered parameter names must not be listed,
//   - an empty list is malformed.
//
// Any violation fails the consuming operation.
func EnsureCriticalUnderstood(protected Parameters, understood []ParameterName) error {
	names, err := protected.CriticalParameters()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCriticalParameter, err)
	}

	if _, present := protected[Critical]; present && len(names) == 0 {
		return fmt.Errorf("%w: %q must be a non-empty array", ErrCriticalParameter, Critical)
	}

	understoodSet := make(map[ParameterName]struct{}, len(understood))
	for _, name := range understood {
		understoodSet[name] = struct{}{}
	}

	for _, name := range names {
		if _, ok := registered[name]; ok {
			return fmt.Errorf("%w: %q lists registered parameter %q", ErrCriticalParameter, Critical, name)
		}

		if _, ok := protected[name]; !ok {
			return fmt.Errorf("%w: %q lists absent parameter %q", ErrCriticalParameter, Critical, name)
		}

		if _, ok := understoodSet[name]; !ok {
			return fmt.Errorf("%w: %q", ErrCriticalParameter, name)
		}
	}

	return nil
}
