// Package service contains the business logic: handle policy, availability
// resolution, identity reconciliation, registration, and the profile/catalog
// read paths. Handlers stay HTTP-only; repositories stay storage-only.
package service

import (
	"fmt"
	"strings"

	"github.com/codelove/codelove/internal/apperror"
)

// HandlePolicy is the syntax policy for human-chosen handles. The limits are
// configuration, not constants, so a deployment can tighten or relax them
// without touching the validator.
type HandlePolicy struct {
	MinLength      int
	MaxLength      int    // 0 disables the upper bound
	AllowedCharset string // "" disables the charset check
}

// DefaultHandlePolicy matches the product's registration form: at least 4
// characters, lowercase alphanumerics and underscore.
func DefaultHandlePolicy() HandlePolicy {
	return HandlePolicy{
		MinLength:      4,
		MaxLength:      30,
		AllowedCharset: "abcdefghijklmnopqrstuvwxyz0123456789_",
	}
}

// Validate checks a handle candidate against the policy. Pure: no I/O, no
// side effects. Returns an apperror.ErrValidation describing the first rule
// violated, or nil when the candidate is acceptable.
func (p HandlePolicy) Validate(candidate string) error {
	if candidate == "" {
		return apperror.ValidationFailed("handle", "Username is required")
	}
	if len(candidate) < p.MinLength {
		return apperror.ValidationFailed("handle",
			fmt.Sprintf("Username must be at least %d characters", p.MinLength))
	}
	if p.MaxLength > 0 && len(candidate) > p.MaxLength {
		return apperror.ValidationFailed("handle",
			fmt.Sprintf("Username must be at most %d characters", p.MaxLength))
	}
	if p.AllowedCharset != "" {
		for _, r := range candidate {
			if !strings.ContainsRune(p.AllowedCharset, r) {
				return apperror.ValidationFailed("handle",
					fmt.Sprintf("Username may not contain %q", r))
			}
		}
	}
	return nil
}
