package jwa

// AllowedAlgorithms is a set of algorithms a caller permits for an
// operation, used to confine the algorithms accepted during
// verification or decryption regardless of what a header claims.
type AllowedAlgorithms map[Algorithm]struct{}

// NewAllowedAlgorithms returns an allowed set containing the given
// algorithms.
func NewAllowedAlgorithms(algs ...Algorithm) AllowedAlgorithms {
	set := make(AllowedAlgorithms, len(algs))
	for _, alg := range algs {
		set[alg] = struct{}{}
	}
	return set
}

// Allowed reports whether all of the given algorithms are in the set.
// An empty argument list is not allowed.
func (set AllowedAlgorithms) Allowed(algs ...Algorithm) bool {
	if len(algs) == 0 {
		return false
	}
	for _, alg := range algs {
		if _, ok := set[alg]; !ok {
			return false
		}
	}
	return true
}

// List returns the algorithms in the set.
func (set AllowedAlgorithms) List() []Algorithm {
	list := make([]Algorithm, 0, len(set))
	for alg := range set {
		list = append(list, alg)
	}
	return list
}
