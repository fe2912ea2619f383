package service

import (
	"fmt"
	"strings"

	"github.com/msomdec/drive-tagger/internal/domain"
)

// AccessPolicy is the allow-list of emails that may touch live data.
// An empty policy admits nobody.
type AccessPolicy struct {
	allowed map[string]bool
}

// NewAccessPolicy creates an AccessPolicy. Emails compare case-insensitively.
func NewAccessPolicy(emails []string) *AccessPolicy {
	p := &AccessPolicy{allowed: make(map[string]bool, len(emails))}
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			p.allowed[e] = true
		}
	}
	return p
}

// Check returns ErrUnauthorized unless email is on the allow-list.
func (p *AccessPolicy) Check(email string) error {
	if email == "" {
		return fmt.Errorf("%w: no verified email", domain.ErrUnauthorized)
	}
	if !p.allowed[normalizeEmail(email)] {
		return fmt.Errorf("%w: %s is not allowed", domain.ErrUnauthorized, email)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
