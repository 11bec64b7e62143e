// Package identity normalizes contact identifiers (phone numbers, email
// addresses) into comparable keys.
//
// An empty key is never a match key: two contacts without a phone are not
// duplicates of each other.
package identity

import "strings"

// NormalizePhone strips everything that is not a digit. A result that starts
// with 1 and is longer than 11 digits had its country code doubled up during
// import; the leading 1 is dropped once.
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}

// Last10 returns the final 10 digits of a normalized number, or the whole
// number when it is shorter.
func Last10(normalized string) string {
	if len(normalized) <= 10 {
		return normalized
	}
	return normalized[len(normalized)-10:]
}

// PhoneKey is the comparison key for a normalized number. Numbers with at
// least 10 digits compare on their last 10 so that "+1 212 555 0100" and
// "212-555-0100" collide. Shorter numbers compare as-is.
func PhoneKey(normalized string) string {
	if len(normalized) >= 10 {
		return Last10(normalized)
	}
	return normalized
}

// PhoneKeyOf normalizes raw and returns its comparison key.
func PhoneKeyOf(raw string) string {
	return PhoneKey(NormalizePhone(raw))
}

// NormalizeEmail trims and lower-cases an address. Values without an @ are
// not addresses and normalize to "".
func NormalizeEmail(raw string) string {
	e := strings.ToLower(strings.TrimSpace(raw))
	if !strings.Contains(e, "@") || strings.HasPrefix(e, "@") || strings.HasSuffix(e, "@") {
		return ""
	}
	return e
}

// PhoneSet holds normalized numbers and their last-10 forms for membership
// tests.
type PhoneSet map[string]struct{}

// NewPhoneSet builds a set from raw numbers. Empty normalizations are skipped.
func NewPhoneSet(raw ...string) PhoneSet {
	s := make(PhoneSet, len(raw)*2)
	for _, r := range raw {
		s.Add(r)
	}
	return s
}

// Add inserts the normalized number and its last-10 form.
func (s PhoneSet) Add(raw string) {
	n := NormalizePhone(raw)
	if n == "" {
		return
	}
	s[n] = struct{}{}
	s[Last10(n)] = struct{}{}
}

// Contains reports whether the normalized form of raw, or its last 10
// digits, is in the set.
func (s PhoneSet) Contains(raw string) bool {
	n := NormalizePhone(raw)
	if n == "" {
		return false
	}
	if _, ok := s[n]; ok {
		return true
	}
	_, ok := s[Last10(n)]
	return ok
}
