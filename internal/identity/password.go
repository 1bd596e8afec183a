package identity

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on a
// modern server — negligible at sign-in, expensive for brute force.
const defaultCost = 12

// passwordHasher wraps bcrypt so the cost can be lowered in tests. The dev
// provider uses it for both account passwords and verification codes — codes
// are short-lived secrets and never stored in the clear either.
type passwordHasher struct {
	cost int
}

func newPasswordHasher() *passwordHasher {
	return &passwordHasher{cost: defaultCost}
}

func (p *passwordHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		// bcrypt silently truncates past 72 bytes; reject instead.
		return "", fmt.Errorf("identity: secret must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("identity: hashing secret: %w", err)
	}

	return string(hashed), nil
}

// Verify returns nil when plaintext matches the stored hash. The comparison
// is constant-time.
func (p *passwordHasher) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("identity: secret mismatch")
		}
		return fmt.Errorf("identity: comparing secret hash: %w", err)
	}
	return nil
}
