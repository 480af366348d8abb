package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrWeakInput is returned when the plaintext violates the configured
// minimum length.
var ErrWeakInput = errors.New("input below minimum length")

type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var defaultParams = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
	SaltLen: 16,
}

// Hasher hashes and verifies secrets with argon2id. Digests are
// self-describing (algorithm, cost, salt, hash) so parameters may evolve
// without invalidating stored rows.
type Hasher struct {
	params    Argon2Params
	minLength int
}

func NewHasher(minLength int) *Hasher {
	return &Hasher{params: defaultParams, minLength: minLength}
}

func NewHasherWithParams(minLength int, params Argon2Params) *Hasher {
	return &Hasher{params: params, minLength: minLength}
}

func (h *Hasher) Hash(plaintext string) ([]byte, error) {
	if len(plaintext) < h.minLength {
		return nil, ErrWeakInput
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(plaintext), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	encoded := base64.StdEncoding.EncodeToString(hash)
	encodedSalt := base64.StdEncoding.EncodeToString(salt)

	result := fmt.Sprintf("$argon2id$v=19$t=%d,m=%d,p=%d$%s$%s",
		h.params.Time, h.params.Memory, h.params.Threads, encodedSalt, encoded)

	return []byte(result), nil
}

// Verify recomputes the digest with the parameters embedded in encodedHash
// and compares in constant time. It never errors on mere mismatch.
func (h *Hasher) Verify(plaintext string, encodedHash []byte) (bool, error) {
	parts := strings.Split(string(encodedHash), "$")
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return false, errors.New("malformed argon2 hash")
	}

	var (
		time    uint32
		memory  uint32
		threads uint8
	)
	if _, err := fmt.Sscanf(parts[3], "t=%d,m=%d,p=%d", &time, &memory, &threads); err != nil {
		return false, fmt.Errorf("parse hash parameters: %w", err)
	}
	saltB64, hashB64 := parts[4], parts[5]

	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}

	hash, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(plaintext), salt, time, memory, threads, uint32(len(hash)))

	return subtle.ConstantTimeCompare(hash, computed) == 1, nil
}

// GenerateToken returns a high-entropy raw token and its argon2 digest.
// Used for password-reset material; the raw form is mailed, the digest
// stored.
func (h *Hasher) GenerateToken(length int) (string, []byte, error) {
	if length <= 0 {
		length = 32
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	raw := base64.RawURLEncoding.EncodeToString(buf)
	digest, err := h.hashAny(raw)
	if err != nil {
		return "", nil, err
	}
	return raw, digest, nil
}

// HashToken hashes machine-generated material (refresh tokens, reset
// tokens) with the same adaptive scheme but no minimum-length check.
func (h *Hasher) HashToken(material string) ([]byte, error) {
	return h.hashAny(material)
}

func (h *Hasher) hashAny(plaintext string) ([]byte, error) {
	hh := Hasher{params: h.params, minLength: 0}
	return hh.Hash(plaintext)
}
