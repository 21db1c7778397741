package jws

import (
	"fmt"

	"github.com/matoous/jwx/pkg/header"
	"github.com/matoous/jwx/pkg/jwa"
	"github.com/matoous/jwx/pkg/jwk"
)

// VerifyConfig is the configuration for verifying message signatures.
type VerifyConfig struct {
	// AllowedAlgorithms confines the algorithms accepted during
	// verification, regardless of what a header claims. If not set,
	// all supported signature algorithms except "none" are accepted.
	//
	// Restricting this set is the defense against algorithm
	// substitution: a token whose header claims HS256 is rejected
	// outright when the caller only allows RS256, before any key is
	// tried.
	AllowedAlgorithms jwa.AllowedAlgorithms

	// InsecureAllowNone permits the unsecured "none" algorithm. It
	// must be set in addition to "none" being in AllowedAlgorithms.
	InsecureAllowNone bool

	// RequireAllSignatures makes verification succeed only if every
	// signature on the message verifies. By default a message with
	// multiple signatures verifies if any one of them does.
	RequireAllSignatures bool

	// CriticalParameters is the set of extension header parameter
	// names the caller understands. A signature whose protected
	// header lists any other name in "crit" fails verification.
	CriticalParameters []header.ParameterName
}

// VerifyOption configures verification.
type VerifyOption func(*VerifyConfig) error

// WithAllowedAlgorithms confines the set of acceptable algorithms.
func WithAllowedAlgorithms(algs ...jwa.Algorithm) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.AllowedAlgorithms = jwa.NewAllowedAlgorithms(algs...)
		return nil
	}
}

// WithInsecureAllowNone permits the unsecured "none" algorithm during
// verification. Users must explicitly enable this option, as it is
// considered insecure, dangerous, and disabled by default.
func WithInsecureAllowNone() VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.InsecureAllowNone = true
		return nil
	}
}

// WithRequireAllSignatures requires every signature on the message to
// verify, instead of the default any-valid policy.
func WithRequireAllSignatures() VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.RequireAllSignatures = true
		return nil
	}
}

// WithCriticalParameters declares the extension header parameters the
// caller understands, satisfying the "crit" rule for them.
func WithCriticalParameters(names ...header.ParameterName) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.CriticalParameters = names
		return nil
	}
}

// Verify checks the message's signatures against the candidate keys
// and returns the payload on success.
//
// The algorithm of each signature is determined by that signature's
// protected header, confined by the allowed set; a caller-expected
// algorithm never overrides the header, it can only reject it. Keys
// are matched by key ID when both sides carry one, and by capability
// otherwise. MAC comparison is constant time.
func Verify(m *Message, keys []*jwk.Key, opts ...VerifyOption) ([]byte, error) {
	config := &VerifyConfig{
		AllowedAlgorithms: jwa.NewAllowedAlgorithms(jwa.SignatureAlgorithms()...),
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("verify option error: %w", err)
		}
	}

	if len(m.Signatures) == 0 {
		return nil, fmt.Errorf("%w: no signatures", ErrMalformed)
	}

	var firstErr error

	for _, sig := range m.Signatures {
		err := verifyOne(m, sig, keys, config)
		if err == nil {
			if !config.RequireAllSignatures {
				return m.payload, nil
			}
			continue
		}

		if config.RequireAllSignatures {
			return nil, err
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	if config.RequireAllSignatures {
		return m.payload, nil
	}

	return nil, firstErr
}

// Verify checks the message's signatures against the candidate keys
// and returns the payload on success.
func (m *Message) Verify(keys []*jwk.Key, opts ...VerifyOption) ([]byte, error) {
	return Verify(m, keys, opts...)
}

func verifyOne(m *Message, sig *Signature, keys []*jwk.Key, config *VerifyConfig) error {
	alg, err := sig.protected.Algorithm()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	// The critical-parameter rule fails closed before anything else.
	if err := header.EnsureCriticalUnderstood(sig.protected, config.CriticalParameters); err != nil {
		return err
	}

	if !jwa.Known(alg) {
		return fmt.Errorf("%w: %q", jwa.ErrUnsupportedAlgorithm, alg)
	}

	if !config.AllowedAlgorithms.Allowed(alg) {
		return fmt.Errorf("%w: %q", ErrAlgorithmNotAllowed, alg)
	}

	input := signingInput(sig.protectedRaw, m.payload)

	if alg == jwa.None {
		if !config.InsecureAllowNone {
			return ErrNoneNotAllowed
		}
		if len(sig.Signature) != 0 {
			return ErrSignatureMismatch
		}
		return nil
	}

	// The key hint may sit in the per-signature unprotected header in
	// the JSON serializations; the protected value wins when both are
	// present. The hint only routes key selection, never trust.
	kid, _ := header.Merge(sig.Unprotected, sig.protected).KeyID()

	tried := false
	for _, key := range keys {
		if kid != "" && key.KeyID != "" && key.KeyID != kid {
			continue
		}
		if !key.Compatible(alg) {
			continue
		}

		tried = true
		if err := verifySignature(alg, key, input, sig.Signature); err == nil {
			return nil
		}
	}

	if !tried {
		return fmt.Errorf("%w: no candidate key for %q", ErrKeyMismatch, alg)
	}

	return ErrSignatureMismatch
}
