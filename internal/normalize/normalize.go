// Package normalize canonicalizes contact fields before uniqueness checks
// and persistence. Normalized values are for comparison and storage keys,
// not for display or mail delivery.
package normalize

import (
	"regexp"
	"strings"
)

// foldingDomains are providers that ignore dots and "+suffix" in the local
// part, so those variants must collapse to one canonical address.
var foldingDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
}

var digitsOnly = regexp.MustCompile(`\D`)

// e164 matches an already-normalized international number: "+" followed by
// 7 to 15 digits with a non-zero leading digit.
var e164 = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// Email lowercases and trims raw. For folding providers it also strips any
// "+suffix" from the local part and removes all dots before the "@"; other
// domains pass through with case/trim only.
func Email(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	if !foldingDomains[domain] {
		return email
	}
	if plus := strings.Index(local, "+"); plus >= 0 {
		local = local[:plus]
	}
	local = strings.ReplaceAll(local, ".", "")
	return local + "@" + domain
}

// Phone normalizes raw to "+<digits>" form. Already-normalized input is
// returned as-is. Otherwise non-digits and leading zeros are stripped;
// exactly 10 remaining digits get defaultCC prefixed, 7–15 digits get a bare
// "+". Anything else reports ok=false, which callers treat as "no phone
// supplied" rather than an error.
func Phone(raw, defaultCC string) (phone string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if e164.MatchString(raw) {
		return raw, true
	}
	digits := digitsOnly.ReplaceAllString(raw, "")
	digits = strings.TrimLeft(digits, "0")
	if len(digits) == 10 && defaultCC != "" {
		return "+" + defaultCC + digits, true
	}
	if len(digits) >= 7 && len(digits) <= 15 {
		return "+" + digits, true
	}
	return "", false
}
