// Package checksum identifies ROM content by cryptographic and CRC
// fingerprints. All four digests are computed in a single streaming pass,
// skipping a detected dump header so that checksums address the bare
// content.
package checksum

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Kind identifies one of the supported checksum types.
type Kind int

const (
	SHA256 Kind = iota
	SHA1
	MD5
	CRC32
)

// ByStrength lists the kinds strongest first. Matching and equality walk
// this order.
var ByStrength = []Kind{SHA256, SHA1, MD5, CRC32}

// Weak lists the kinds that alone do not prove identity beyond collision
// doubt; the remainder of ByStrength is considered strong.
var Weak = []Kind{CRC32}

// FSKind is the kind whose hex string names content-addressed files.
const FSKind = SHA1

var kindNames = map[Kind]string{
	SHA256: "sha256",
	SHA1:   "sha1",
	MD5:    "md5",
	CRC32:  "crc32",
}

var kindSizes = map[Kind]int{
	SHA256: 32,
	SHA1:   20,
	MD5:    16,
	CRC32:  4,
}

// Digests of zero-length content.
var nilValueHex = map[Kind]string{
	SHA256: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	SHA1:   "da39a3ee5e6b4b0d3255bfef95601890afd80709",
	MD5:    "d41d8cd98f00b204e9800998ecf8427e",
	CRC32:  "00000000",
}

// ParseKind maps a lowercase kind name to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown checksum kind: %q", name)
}

// String returns the canonical lowercase name of the kind.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("checksum.Kind(%d)", int(k))
}

// Size returns the digest width in bytes.
func (k Kind) Size() int { return kindSizes[k] }

// HexLen returns the canonical hex string length.
func (k Kind) HexLen() int { return 2 * kindSizes[k] }

// NilValue returns the digest of empty content in binary form.
func (k Kind) NilValue() []byte {
	b, _ := hex.DecodeString(nilValueHex[k])
	return b
}

// NilValueHex returns the digest of empty content as lowercase hex.
func (k Kind) NilValueHex() string { return nilValueHex[k] }

// IsWeak reports whether the kind is a weak checksum.
func (k Kind) IsWeak() bool {
	for _, w := range Weak {
		if k == w {
			return true
		}
	}
	return false
}

// Canonical converts a checksum value in either binary or hex form to its
// canonical binary representation, rejecting values of the wrong width.
func (k Kind) Canonical(value []byte) ([]byte, error) {
	switch len(value) {
	case k.Size():
		out := make([]byte, len(value))
		copy(out, value)
		return out, nil
	case k.HexLen():
		out := make([]byte, k.Size())
		if _, err := hex.Decode(out, bytes.ToLower(value)); err != nil {
			return nil, fmt.Errorf("bad %s value %q: %w", k, value, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("bad %s value length %d", k, len(value))
	}
}
