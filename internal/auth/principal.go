package auth

import "strings"

// Principal is an authenticated actor. A nil *Principal represents the
// anonymous caller; capability predicates receive it as-is and decide.
type Principal struct {
	ID        int64
	Email     string
	FirstName string
	Surname   string
}

// DisplayName returns a human-readable name, falling back to the email.
func (p *Principal) DisplayName() string {
	if p == nil {
		return ""
	}
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.Surname))
	if name == "" {
		return p.Email
	}
	return name
}
