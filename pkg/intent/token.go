package intent

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// payloadVersion tags the wire format so it can evolve without ambiguity.
const payloadVersion = 1

// tokenDelimiter separates payload and signature halves. base64url output
// never contains '.', so splitting is unambiguous.
const tokenDelimiter = "."

// b64 is strict so every token has exactly one accepted spelling; decoding
// rejects non-canonical trailing bits instead of silently ignoring them.
var b64 = base64.RawURLEncoding.Strict()

// Payload is the signed half of an intent token:
// base64url(JSON(payload)) + "." + base64url(HMAC-SHA256(secret, payloadBytes)).
type Payload struct {
	V         int       `json:"v"`
	TokenID   uuid.UUID `json:"jti"`
	IPHash    string    `json:"ip_hash"`
	UAHash    string    `json:"ua_hash"`
	PlanID    string    `json:"plan_id"`
	ExpMillis int64     `json:"exp"`
}

// Codec is an explicit encode/decode pair for the composite token format.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Encode serializes and signs the payload.
func (c *Codec) Encode(p Payload) (string, error) {
	p.V = payloadVersion
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return b64.EncodeToString(raw) +
		tokenDelimiter +
		b64.EncodeToString(c.sign(raw)), nil
}

// Decode splits, verifies the signature in constant time, and parses the
// payload. No ledger interaction happens here; a token that fails Decode
// must never reach the store.
func (c *Codec) Decode(token string) (Payload, error) {
	payloadPart, sigPart, ok := strings.Cut(token, tokenDelimiter)
	if !ok || payloadPart == "" || sigPart == "" {
		return Payload{}, ErrMalformedToken
	}
	raw, err := b64.DecodeString(payloadPart)
	if err != nil {
		return Payload{}, ErrMalformedToken
	}
	sig, err := b64.DecodeString(sigPart)
	if err != nil {
		return Payload{}, ErrMalformedToken
	}
	if !hmac.Equal(sig, c.sign(raw)) {
		return Payload{}, ErrBadSignature
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, ErrMalformedToken
	}
	if p.V != payloadVersion || p.TokenID == uuid.Nil {
		return Payload{}, ErrMalformedToken
	}
	return p, nil
}

func (c *Codec) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return mac.Sum(nil)
}
