// Package flowstate packs auxiliary flow data into the opaque OAuth2 `state`
// parameter and back. The packed value is transmitted through the provider
// verbatim, so it must round-trip exactly.
package flowstate

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"
)

// nonceLength is the number of random bytes behind the CSRF nonce. 32 bytes
// gives 256 bits of entropy.
const nonceLength = 32

// ErrOpaqueState is returned by Unpack when the value was not produced by
// Pack. The callback handler must still accept such values: the nonce field is
// set to the raw state so the CSRF comparison proceeds against the bare value.
var ErrOpaqueState = errors.New("state is not a packed flow record")

// Data is the record carried through the provider inside the state parameter.
// The Nonce component, not the packed value as a whole, is the CSRF defense:
// the callback compares it against the nonce stored at initiation.
type Data struct {
	Nonce     string `json:"n"`
	Verifier  string `json:"v,omitempty"`
	ReturnURL string `json:"r,omitempty"`
	SessionID string `json:"s,omitempty"`
	Platform  string `json:"p,omitempty"`
}

// NewNonce creates a random URL-safe nonce.
func NewNonce() string {
	b := make([]byte, nonceLength)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Pack serializes a flow record into a single URL-safe string.
func Pack(d Data) (string, error) {
	if d.Nonce == "" {
		return "", errors.New("[flowstate.Pack] nonce is required")
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return "", errors.Wrap(err, "[flowstate.Pack] marshal")
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Unpack is the inverse of Pack. Legacy or foreign state values are not an
// error condition for the callback: they come back as ErrOpaqueState with the
// raw value standing in as the nonce and no auxiliary fields.
func Unpack(raw string) (Data, error) {
	if raw == "" {
		return Data{}, errors.New("[flowstate.Unpack] empty state")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return Data{Nonce: raw}, ErrOpaqueState
	}

	var d Data
	if err := json.Unmarshal(decoded, &d); err != nil || d.Nonce == "" {
		return Data{Nonce: raw}, ErrOpaqueState
	}
	return d, nil
}
