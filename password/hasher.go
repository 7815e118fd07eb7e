// Package password provides one-way salted password hashing with
// constant-time verification. Output is PHC-encoded argon2id, so the salt
// and cost parameters travel inside the hash and need no separate storage.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	algorithmID = "argon2id"

	minMemoryKB   uint32 = 8 * 1024
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
)

// Params tunes the argon2id cost surface. Zero values fall back to the
// package defaults in DefaultParams.
type Params struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams returns interactive-login argon2id costs.
func DefaultParams() Params {
	return Params{
		MemoryKB:    64 * 1024,
		Time:        2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher derives and verifies argon2id hashes. Safe for concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates p and returns a Hasher.
func NewHasher(p Params) (*Hasher, error) {
	if p == (Params{}) {
		p = DefaultParams()
	}
	switch {
	case p.MemoryKB < minMemoryKB:
		return nil, errors.New("password: memory must be >= 8192 KB")
	case p.Time < 1:
		return nil, errors.New("password: time cost must be >= 1")
	case p.Parallelism < 1:
		return nil, errors.New("password: parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return nil, errors.New("password: salt length must be >= 16")
	case p.KeyLength < minKeyLength:
		return nil, errors.New("password: key length must be >= 16")
	}
	return &Hasher{params: p}, nil
}

// Hash derives a PHC-encoded hash of password with a fresh random salt.
// Two calls with the same input never produce the same output.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("password: empty password")
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Time,
		h.params.MemoryKB,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.MemoryKB,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the hash of password using the parameters embedded in
// encoded and compares in constant time. The plaintext is never logged or
// echoed back in errors.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	salt, key, params, err := decode(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		salt,
		params.Time,
		params.MemoryKB,
		params.Parallelism,
		uint32(len(key)),
	)

	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

func decode(encoded string) (salt, key []byte, params Params, err error) {
	var version int
	var rawSalt, rawKey string

	n, err := fmt.Sscanf(
		encoded,
		"$"+algorithmID+"$v=%d$m=%d,t=%d,p=%d$%s",
		&version, &params.MemoryKB, &params.Time, &params.Parallelism, &rawSalt,
	)
	if err != nil || n != 5 {
		return nil, nil, Params{}, errors.New("password: malformed hash encoding")
	}
	if version != argon2.Version {
		return nil, nil, Params{}, errors.New("password: unsupported argon2 version")
	}
	if params.MemoryKB < minMemoryKB || params.Time < 1 || params.Parallelism < 1 {
		return nil, nil, Params{}, errors.New("password: implausible hash parameters")
	}

	// Sscanf leaves "salt$key" in the trailing %s; split it apart.
	sep := -1
	for i := 0; i < len(rawSalt); i++ {
		if rawSalt[i] == '$' {
			sep = i
			break
		}
	}
	if sep <= 0 || sep == len(rawSalt)-1 {
		return nil, nil, Params{}, errors.New("password: malformed hash encoding")
	}
	rawKey = rawSalt[sep+1:]
	rawSalt = rawSalt[:sep]

	salt, err = base64.RawStdEncoding.DecodeString(rawSalt)
	if err != nil || uint32(len(salt)) < minSaltLength {
		return nil, nil, Params{}, errors.New("password: invalid salt")
	}
	key, err = base64.RawStdEncoding.DecodeString(rawKey)
	if err != nil || uint32(len(key)) < minKeyLength {
		return nil, nil, Params{}, errors.New("password: invalid key")
	}

	return salt, key, params, nil
}
