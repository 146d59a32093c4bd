package as2

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"
)

// DefaultMICAlgorithm is used when a partner profile names none.
const DefaultMICAlgorithm = "sha256"

// micHash returns the hash constructor for an RFC 4130 MIC algorithm name.
func micHash(algorithm string) (func() hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case "sha256", "sha-256":
		return sha256.New, nil
	case "sha1", "sha-1":
		return sha1.New, nil
	case "sha512", "sha-512":
		return sha512.New, nil
	case "md5":
		return md5.New, nil
	default:
		return nil, fmt.Errorf("unsupported MIC algorithm %q", algorithm)
	}
}

// CalculateMIC computes the message integrity check over data in the
// RFC 4130 Received-Content-MIC form: a base64 digest followed by the
// algorithm label, e.g. "lzbI...=, sha256". Deterministic for the same
// input and algorithm.
func CalculateMIC(data []byte, algorithm string) (string, error) {
	if algorithm == "" {
		algorithm = DefaultMICAlgorithm
	}
	newHash, err := micHash(algorithm)
	if err != nil {
		return "", err
	}
	h := newHash()
	h.Write(data)
	return base64.StdEncoding.EncodeToString(h.Sum(nil)) + ", " + strings.ToLower(algorithm), nil
}

// VerifyMIC reports whether mic matches the digest of data under the given
// algorithm. Any tampering of data or digest, or an algorithm mismatch,
// yields false. The comparison is constant time.
func VerifyMIC(data []byte, mic, algorithm string) bool {
	expected, err := CalculateMIC(data, algorithm)
	if err != nil {
		return false
	}
	if len(expected) != len(mic) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(mic)) == 1
}
