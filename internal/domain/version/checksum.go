package version

import (
	"encoding/hex"
	"encoding/json"

	"golang.org/x/crypto/sha3"
)

// Checksum computes a stable SHA3-256 content hash over a canonical
// serialization of the document. Key order in the input does not affect
// the result, so the hash doubles as an exact-duplicate marker.
func Checksum(data json.RawMessage) (string, error) {
	canonical, err := CanonicalJSON(data)
	if err != nil {
		return "", err
	}
	sum := sha3.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON re-serializes arbitrary JSON with object keys sorted.
// encoding/json marshals map keys in sorted order, so a decode/encode
// round trip yields a canonical form.
func CanonicalJSON(data json.RawMessage) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
