package parse

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	codeRe  = regexp.MustCompile(`^[A-Z0-9][A-Z0-9._-]{0,31}$`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeCode turns a human-entered catalog code into its stored key.
// Inner whitespace becomes "-" so "p 100" and "P-100" collide on purpose.
func NormalizeCode(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = spaceRe.ReplaceAllString(s, "-")
	if s == "" {
		return "", fmt.Errorf("code is empty")
	}
	if !codeRe.MatchString(s) {
		return "", fmt.Errorf("invalid code %q: use letters, digits, '.', '_' or '-' (max 32)", raw)
	}
	return s, nil
}
