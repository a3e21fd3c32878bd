package orchestrator

import (
	"fmt"
	"strings"

	"github.com/nxsec/bpfuzz/internal/debugger"
)

// maxFingerprintLen caps the sanitized fingerprint at 100 characters
// (section 4.H): "sanitized concatenation of up to 100 chars of frame
// addresses".
const maxFingerprintLen = 100

// fingerprint builds a crash/timeout dedup key from a stack trace:
// frame addresses concatenated in hex, most-recent-frame first,
// stripped to alphanumerics, truncated to maxFingerprintLen.
func fingerprint(frames []debugger.StackFrame) string {
	var b strings.Builder
	for _, f := range frames {
		fmt.Fprintf(&b, "%x", f.Address)
	}
	raw := b.String()

	var sanitized strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			sanitized.WriteRune(r)
		}
	}
	s := sanitized.String()
	if len(s) > maxFingerprintLen {
		s = s[:maxFingerprintLen]
	}
	if s == "" {
		s = "unknown"
	}
	return s
}
