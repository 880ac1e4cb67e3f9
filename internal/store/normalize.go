package store

import "strings"

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone keeps only the digits of a phone number
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Last7 returns the last seven digits, or all of them when there are fewer
func Last7(digits string) string {
	if len(digits) <= 7 {
		return digits
	}
	return digits[len(digits)-7:]
}

// EscapeLike escapes the LIKE wildcards in a user-supplied fragment
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
