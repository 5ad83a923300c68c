package classifier

import (
	"net/mail"
	"strings"
)

type sender struct {
	address string
	domain  string
	name    string
}

// parseSender lowercases a From value and splits it into address, domain
// and display name. Values net/mail rejects are kept as they are.
func parseSender(raw string) sender {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return sender{}
	}

	var s sender
	switch a, err := mail.ParseAddress(raw); {
	case err == nil:
		s.address = strings.ToLower(a.Address)
		s.name = strings.ToLower(a.Name)
	case strings.Contains(raw, "@"):
		s.address = strings.ToLower(raw)
	default:
		s.name = strings.ToLower(raw)
	}
	if i := strings.LastIndex(s.address, "@"); i >= 0 {
		s.domain = strings.Trim(s.address[i+1:], "<> ")
	}
	return s
}

// matchAny reports whether a pattern occurs in one of the fields. Patterns
// of two characters or fewer must equal a whole token, so "hr" matches
// hr.example.jp but not three.co.jp.
func matchAny(patterns []string, fields ...string) bool {
	for _, field := range fields {
		if field == "" {
			continue
		}
		tokens := strings.FieldsFunc(field, func(r rune) bool {
			return r == '.' || r == '-' || r == '_' || r == '@' || r == ' '
		})
		for _, p := range patterns {
			if len([]rune(p)) > 2 {
				if strings.Contains(field, p) {
					return true
				}
				continue
			}
			for _, tok := range tokens {
				if tok == p {
					return true
				}
			}
		}
	}
	return false
}
