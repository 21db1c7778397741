package jws

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matoous/jwx/pkg/base64"
	"github.com/matoous/jwx/pkg/header"
)

// rawSignature is the wire form of one signature in the JSON
// serialization.
type rawSignature struct {
	Protected string            `json:"protected,omitempty"`
	Header    header.Parameters `json:"header,omitempty"`
	Signature string            `json:"signature"`
}

// rawMessage is the wire form of the JSON serialization, covering both
// the general form (signatures array) and the flattened form (the
// signature members at the top level).
type rawMessage struct {
	Payload    string         `json:"payload"`
	Signatures []rawSignature `json:"signatures,omitempty"`

	Protected string            `json:"protected,omitempty"`
	Header    header.Parameters `json:"header,omitempty"`
	Signature *string           `json:"signature,omitempty"`
}

// Compact returns the compact serialization of the message:
//
//	BASE64URL(protected) '.' BASE64URL(payload) '.' BASE64URL(signature)
//
// The compact form carries exactly one signature and cannot represent
// an unprotected header.
func (m *Message) Compact() (string, error) {
	if len(m.Signatures) != 1 {
		return "", fmt.Errorf("%w: compact serialization requires exactly one signature, have %d", ErrMalformed, len(m.Signatures))
	}

	sig := m.Signatures[0]
	if len(sig.Unprotected) != 0 {
		return "", fmt.Errorf("%w: compact serialization cannot carry an unprotected header", ErrMalformed)
	}

	return sig.protectedRaw + "." + base64.Encode(m.payload) + "." + base64.Encode(sig.Signature), nil
}

// ParseCompact parses a compact serialization. The input must have
// exactly three parts; the payload is unverified until Verify
// succeeds.
func ParseCompact(input string) (*Message, error) {
	parts := strings.Split(input, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 parts, got %d", ErrMalformed, len(parts))
	}

	sig, err := parseRawSignature(parts[0], parts[2], nil)
	if err != nil {
		return nil, err
	}

	payload, err := base64.Decode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}

	return &Message{
		payload:    payload,
		Signatures: []*Signature{sig},
	}, nil
}

// MarshalGeneralJSON returns the general JSON serialization, carrying
// all signatures on the message.
func (m *Message) MarshalGeneralJSON() ([]byte, error) {
	if len(m.Signatures) == 0 {
		return nil, fmt.Errorf("%w: no signatures", ErrMalformed)
	}

	raw := rawMessage{
		Payload:    base64.Encode(m.payload),
		Signatures: make([]rawSignature, 0, len(m.Signatures)),
	}

	for _, sig := range m.Signatures {
		raw.Signatures = append(raw.Signatures, rawSignature{
			Protected: sig.protectedRaw,
			Header:    sig.Unprotected,
			Signature: base64.Encode(sig.Signature),
		})
	}

	return json.Marshal(raw)
}

// MarshalFlattenedJSON returns the flattened JSON serialization. Like
// the compact form it carries exactly one signature, but it can also
// carry that signature's unprotected header.
func (m *Message) MarshalFlattenedJSON() ([]byte, error) {
	if len(m.Signatures) != 1 {
		return nil, fmt.Errorf("%w: flattened serialization requires exactly one signature, have %d", ErrMalformed, len(m.Signatures))
	}

	sig := m.Signatures[0]
	encoded := base64.Encode(sig.Signature)

	return json.Marshal(rawMessage{
		Payload:   base64.Encode(m.payload),
		Protected: sig.protectedRaw,
		Header:    sig.Unprotected,
		Signature: &encoded,
	})
}

// ParseJSON parses either JSON serialization form. A message mixing
// the general "signatures" array with top-level flattened members is
// rejected.
func ParseJSON(input []byte) (*Message, error) {
	var raw rawMessage
	if err := json.Unmarshal(input, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	flattened := raw.Protected != "" || raw.Header != nil || raw.Signature != nil

	if len(raw.Signatures) > 0 && flattened {
		return nil, fmt.Errorf("%w: mixed general and flattened serialization members", ErrMalformed)
	}
	if len(raw.Signatures) == 0 && !flattened {
		return nil, fmt.Errorf("%w: no signatures", ErrMalformed)
	}

	payload, err := base64.Decode(raw.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrMalformed, err)
	}

	m := &Message{payload: payload}

	if flattened {
		var encoded string
		if raw.Signature != nil {
			encoded = *raw.Signature
		}
		sig, err := parseRawSignature(raw.Protected, encoded, raw.Header)
		if err != nil {
			return nil, err
		}
		m.Signatures = []*Signature{sig}
		return m, nil
	}

	for _, rs := range raw.Signatures {
		sig, err := parseRawSignature(rs.Protected, rs.Signature, rs.Header)
		if err != nil {
			return nil, err
		}
		m.Signatures = append(m.Signatures, sig)
	}

	return m, nil
}

// parseRawSignature decodes one signature's wire members. The raw
// protected segment is retained so that verification reproduces the
// exact signing input.
func parseRawSignature(protectedRaw, signature string, unprotected header.Parameters) (*Signature, error) {
	if protectedRaw == "" {
		return nil, fmt.Errorf("%w: missing protected header", ErrMalformed)
	}

	headerBytes, err := base64.Decode(protectedRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: protected header: %v", ErrMalformed, err)
	}

	var protected header.Parameters
	if err := json.Unmarshal(headerBytes, &protected); err != nil {
		return nil, fmt.Errorf("%w: protected header: %v", ErrMalformed, err)
	}

	for name := range unprotected {
		if _, ok := protected[name]; ok {
			return nil, fmt.Errorf("%w: header parameter %q present in both protected and unprotected headers", ErrMalformed, name)
		}
	}

	sigBytes, err := base64.Decode(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrMalformed, err)
	}

	return &Signature{
		protected:    protected,
		protectedRaw: protectedRaw,
		Unprotected:  unprotected,
		Signature:    sigBytes,
	}, nil
}
