package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Fingerprint is the lowercase hex encoding of the SHA-256 digest of a
// file's raw bytes. Byte-identical files always share a fingerprint;
// collisions between distinct files are computationally infeasible.
type Fingerprint string

func (f Fingerprint) String() string { return string(f) }

// Compute hashes raw content bytes.
func Compute(content []byte) Fingerprint {
	sum := sha256.Sum256(content)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// ComputeReader hashes a stream without buffering it in memory.
func ComputeReader(r io.Reader) (Fingerprint, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return Fingerprint(hex.EncodeToString(h.Sum(nil))), n, nil
}
