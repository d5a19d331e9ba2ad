// Package compat recognizes the known cryptographic-backend defect in the
// admin client stack. Errors matching its signature are the only class the
// pipeline may recover from by dropping to the REST fallback tier; the defect
// itself is a third-party runtime issue and is tolerated, not fixed here.
package compat

import "strings"

// knownSignatures are substrings observed in the defective client's errors.
// The OpenSSL 3 decoder rejection (1E08010C) is the canonical case; the rest
// are variants seen from the same runtime.
var knownSignatures = []string{
	"error:1E08010C",
	"DECODER routines",
	"ERR_OSSL_UNSUPPORTED",
	"unsupported crypto backend",
}

// Recoverable reports whether err carries the known backend-incompatibility
// signature. Matches anywhere in the error chain's text; nil is never
// recoverable.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, sig := range knownSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
