package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CanonicalJSON re-encodes a raw JSON document with object keys sorted, so two
// documents that differ only in key order produce identical bytes. Numbers are
// kept verbatim via json.Number to avoid float round-tripping.
func CanonicalJSON(raw []byte) ([]byte, error) {
	var value interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return json.Marshal(value)
}

// PayloadHash returns the hex SHA-256 of the canonical form of a raw provider
// payload, or "" when there is no payload to hash. Invalid JSON is hashed as-is
// so change detection still works on opaque blobs.
func PayloadHash(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	canonical, err := CanonicalJSON(raw)
	if err != nil {
		canonical = raw
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
