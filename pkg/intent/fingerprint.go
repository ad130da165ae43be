package intent

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprinter derives one-way client fingerprints from the request IP
// and User-Agent. The salt keeps hashes from being reversible by brute
// force over the IPv4 space; raw values are never stored or logged.
type Fingerprinter struct {
	salt []byte
}

func NewFingerprinter(salt string) *Fingerprinter {
	return &Fingerprinter{salt: []byte(salt)}
}

// Hash returns the salted SHA-256 of a single attribute (IP or User-Agent).
func (f *Fingerprinter) Hash(value string) string {
	h := sha256.New()
	h.Write(f.salt)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// Combined hashes IP and User-Agent together; used as the rate-limit
// identifier, which keys on the full client fingerprint.
func (f *Fingerprinter) Combined(ip, userAgent string) string {
	h := sha256.New()
	h.Write(f.salt)
	h.Write([]byte(ip))
	h.Write([]byte{0})
	h.Write([]byte(userAgent))
	return hex.EncodeToString(h.Sum(nil))
}
