package credential

import (
	"errors"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// Hash formats understood by ParseHash.
const (
	FormatBcrypt   = "bcrypt"
	FormatArgon2id = "argon2id"
)

// Domain errors
var (
	ErrEmptySecret   = errors.New("secret cannot be empty")
	ErrUnknownFormat = errors.New("secret hash must be bcrypt ($2a$/$2b$/$2y$) or argon2id ($argon2id$)")
)

var argonParams = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Secret is the hashed shared admin password. The plaintext is never kept.
type Secret struct {
	hash   string
	format string
}

// HashPassword hashes a plaintext secret in the given format.
// PRE: password is non-empty; format is FormatBcrypt or FormatArgon2id
// POST: returns an encoded hash suitable for ParseHash
func HashPassword(password, format string) (string, error) {
	if password == "" {
		return "", ErrEmptySecret
	}
	switch format {
	case FormatBcrypt, "":
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case FormatArgon2id:
		return argon2id.CreateHash(password, argonParams)
	}
	return "", ErrUnknownFormat
}

// FromPassword hashes password with bcrypt and returns the resulting Secret.
// PRE: password is non-empty
// POST: Secret verifies password and nothing else
func FromPassword(password string) (Secret, error) {
	h, err := HashPassword(password, FormatBcrypt)
	if err != nil {
		return Secret{}, err
	}
	return Secret{hash: h, format: FormatBcrypt}, nil
}

// ParseHash wraps an encoded bcrypt or argon2id hash.
// PRE: none
// POST: returns a Secret or ErrUnknownFormat
func ParseHash(encoded string) (Secret, error) {
	encoded = strings.TrimSpace(encoded)
	switch {
	case encoded == "":
		return Secret{}, ErrEmptySecret
	case strings.HasPrefix(encoded, "$argon2id$"):
		return Secret{hash: encoded, format: FormatArgon2id}, nil
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return Secret{hash: encoded, format: FormatBcrypt}, nil
	}
	return Secret{}, ErrUnknownFormat
}

// Format returns the hash format of the secret.
func (s Secret) Format() string {
	return s.format
}

// IsZero reports whether the secret was never configured.
func (s Secret) IsZero() bool {
	return s.hash == ""
}

// Verify compares a submitted password against the hash in constant time.
// PRE: none
// POST: true only when password matches
func (s Secret) Verify(password string) bool {
	if s.hash == "" || password == "" {
		return false
	}
	switch s.format {
	case FormatArgon2id:
		ok, err := argon2id.ComparePasswordAndHash(password, s.hash)
		return err == nil && ok
	case FormatBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(s.hash), []byte(password)) == nil
	}
	return false
}
