package jwk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Set is a JWK Set: a JSON object with a "keys" member holding an
// array of JWKs, typically served from a well-known URL for
// verification against rotating key material.
//
// https://datatracker.ietf.org/doc/html/rfc7517#section-5
type Set struct {
	// https://datatracker.ietf.org/doc/html/rfc7517#section-5.1
	Keys []*Key `json:"keys"`
}

// ParseSet parses and validates a JWK Set from its JSON representation.
func ParseSet(data []byte) (*Set, error) {
	set := &Set{}
	if err := json.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}

	return set, nil
}

// Validate validates every key in the set.
func (s *Set) Validate() error {
	for i, key := range s.Keys {
		if err := key.Validate(); err != nil {
			return fmt.Errorf("key %d: %w", i, err)
		}
	}
	return nil
}

// Key returns the first key in the set with the given key ID.
func (s *Set) Key(keyID string) (*Key, bool) {
	for _, key := range s.Keys {
		if key.KeyID == keyID {
			return key, true
		}
	}
	return nil, false
}

// FetchSet fetches and validates a JWK set from the given URL, such as
// an OIDC provider's jwks_uri endpoint.
func FetchSet(ctx context.Context, url string, client *http.Client) (*Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK set request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWK set: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch JWK set: %s", resp.Status)
	}

	var set Set
	err = json.NewDecoder(resp.Body).Decode(&set)
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWK set: %w", err)
	}

	err = set.Validate()
	if err != nil {
		return nil, fmt.Errorf("failed to validate JWK set: %w", err)
	}

	return &set, nil
}
