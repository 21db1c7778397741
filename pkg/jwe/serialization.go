package jwe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matoous/jwx/pkg/base64"
	"github.com/matoous/jwx/pkg/header"
)

// rawRecipient is the wire form of one recipient in the JSON
// serialization.
type rawRecipient struct {
	Header       header.Parameters `json:"header,omitempty"`
	EncryptedKey string            `json:"encrypted_key,omitempty"`
}

// rawMessage is the wire form of the JSON serialization, covering both
// the general form (recipients array) and the flattened form (the
// recipient members at the top level).
type rawMessage struct {
	Protected   string            `json:"protected,omitempty"`
	Unprotected header.Parameters `json:"unprotected,omitempty"`
	Recipients  []rawRecipient    `json:"recipients,omitempty"`

	Header       header.Parameters `json:"header,omitempty"`
	EncryptedKey string            `json:"encrypted_key,omitempty"`

	AAD        string `json:"aad,omitempty"`
	IV         string `json:"iv,omitempty"`
	Ciphertext string `json:"ciphertext"`
	Tag        string `json:"tag,omitempty"`
}

// Compact returns the compact serialization:
//
//	BASE64URL(protected) '.' BASE64URL(encrypted key) '.'
//	BASE64URL(IV) '.' BASE64URL(ciphertext) '.' BASE64URL(tag)
//
// The compact form carries exactly one recipient and cannot carry an
// unprotected header, a per-recipient header, or AAD.
func (m *Message) Compact() (string, error) {
	if len(m.Recipients) != 1 {
		return "", fmt.Errorf("%w: compact serialization requires exactly one recipient, have %d", ErrMalformed, len(m.Recipients))
	}
	if len(m.Unprotected) != 0 || len(m.Recipients[0].Header) != 0 {
		return "", fmt.Errorf("%w: compact serialization cannot carry unprotected headers", ErrMalformed)
	}
	if m.AAD != nil {
		return "", fmt.Errorf("%w: compact serialization cannot carry additional authenticated data", ErrMalformed)
	}

	return strings.Join([]string{
		m.protectedRaw,
		base64.Encode(m.Recipients[0].EncryptedKey),
		base64.Encode(m.IV),
		base64.Encode(m.Ciphertext),
		base64.Encode(m.Tag),
	}, "."), nil
}

// ParseCompact parses a compact serialization. The input must have
// exactly five parts.
func ParseCompact(input string) (*Message, error) {
	parts := strings.Split(input, ".")
	if len(parts) != 5 {
		return nil, fmt.Errorf("%w: expected 5 parts, got %d", ErrMalformed, len(parts))
	}

	protected, err := parseProtected(parts[0])
	if err != nil {
		return nil, err
	}

	segments := make([][]byte, 4)
	for i, name := range []string{"encrypted key", "initialization vector", "ciphertext", "authentication tag"} {
		segments[i], err = base64.Decode(parts[i+1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
		}
	}

	return &Message{
		protected:    protected,
		protectedRaw: parts[0],
		Recipients:   []*Recipient{{EncryptedKey: segments[0]}},
		IV:           segments[1],
		Ciphertext:   segments[2],
		Tag:          segments[3],
	}, nil
}

// MarshalGeneralJSON returns the general JSON serialization, carrying
// all recipients on the message.
func (m *Message) MarshalGeneralJSON() ([]byte, error) {
	if len(m.Recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrMalformed)
	}

	raw := rawMessage{
		Protected:   m.protectedRaw,
		Unprotected: m.Unprotected,
		IV:          base64.Encode(m.IV),
		Ciphertext:  base64.Encode(m.Ciphertext),
		Tag:         base64.Encode(m.Tag),
	}
	if m.AAD != nil {
		raw.AAD = base64.Encode(m.AAD)
	}

	for _, recipient := range m.Recipients {
		raw.Recipients = append(raw.Recipients, rawRecipient{
			Header:       recipient.Header,
			EncryptedKey: base64.Encode(recipient.EncryptedKey),
		})
	}

	return json.Marshal(raw)
}

// MarshalFlattenedJSON returns the flattened JSON serialization. Like
// the compact form it carries exactly one recipient, but it can also
// carry unprotected headers and AAD.
func (m *Message) MarshalFlattenedJSON() ([]byte, error) {
	if len(m.Recipients) != 1 {
		return nil, fmt.Errorf("%w: flattened serialization requires exactly one recipient, have %d", ErrMalformed, len(m.Recipients))
	}

	recipient := m.Recipients[0]

	raw := rawMessage{
		Protected:    m.protectedRaw,
		Unprotected:  m.Unprotected,
		Header:       recipient.Header,
		EncryptedKey: base64.Encode(recipient.EncryptedKey),
		IV:           base64.Encode(m.IV),
		Ciphertext:   base64.Encode(m.Ciphertext),
		Tag:          base64.Encode(m.Tag),
	}
	if m.AAD != nil {
		raw.AAD = base64.Encode(m.AAD)
	}

	return json.Marshal(raw)
}

// ParseJSON parses either JSON serialization form. A message mixing
// the general "recipients" array with top-level flattened members is
// rejected.
func ParseJSON(input []byte) (*Message, error) {
	var raw rawMessage
	if err := json.Unmarshal(input, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	flattened := raw.Header != nil || raw.EncryptedKey != ""

	if len(raw.Recipients) > 0 && flattened {
		return nil, fmt.Errorf("%w: mixed general and flattened serialization members", ErrMalformed)
	}

	protected, err := parseProtected(raw.Protected)
	if err != nil {
		return nil, err
	}

	m := &Message{
		protected:    protected,
		protectedRaw: raw.Protected,
		Unprotected:  raw.Unprotected,
	}

	if raw.AAD != "" {
		if m.AAD, err = base64.Decode(raw.AAD); err != nil {
			return nil, fmt.Errorf("%w: aad: %v", ErrMalformed, err)
		}
	}
	if m.IV, err = base64.Decode(raw.IV); err != nil {
		return nil, fmt.Errorf("%w: initialization vector: %v", ErrMalformed, err)
	}
	if m.Ciphertext, err = base64.Decode(raw.Ciphertext); err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrMalformed, err)
	}
	if m.Tag, err = base64.Decode(raw.Tag); err != nil {
		return nil, fmt.Errorf("%w: authentication tag: %v", ErrMalformed, err)
	}

	if len(raw.Recipients) == 0 {
		encryptedKey, err := base64.Decode(raw.EncryptedKey)
		if err != nil {
			return nil, fmt.Errorf("%w: encrypted key: %v", ErrMalformed, err)
		}
		m.Recipients = []*Recipient{{
			Header:       raw.Header,
			EncryptedKey: encryptedKey,
		}}
		return m, nil
	}

	for _, rr := range raw.Recipients {
		encryptedKey, err := base64.Decode(rr.EncryptedKey)
		if err != nil {
			return nil, fmt.Errorf("%w: encrypted key: %v", ErrMalformed, err)
		}
		m.Recipients = append(m.Recipients, &Recipient{
			Header:       rr.Header,
			EncryptedKey: encryptedKey,
		})
	}

	return m, nil
}

func parseProtected(protectedRaw string) (header.Parameters, error) {
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

	return protected, nil
}
