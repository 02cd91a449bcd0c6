package catalog

import "regexp"

// clearingPatterns match error strings that indicate the on-disk indexes for
// a tag are no longer trustworthy and must be rebuilt from scratch. Busy
// errors are excluded deliberately: lock contention is transient and does
// not imply corruption, unlike a malformed page or a dimension mismatch.
var clearingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)dimension mismatch`),
	regexp.MustCompile(`(?i)database disk image is malformed`),
	regexp.MustCompile(`(?i)disk i/?o error`),
	regexp.MustCompile(`(?i)database or disk is full`),
	regexp.MustCompile(`(?i)unique constraint`),
	regexp.MustCompile(`(?i)constraint failed`),
	regexp.MustCompile(`(?i)is not a database`),
	regexp.MustCompile(`(?i)corrupt`),
}

var busyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)database is locked`),
	regexp.MustCompile(`(?i)busy`),
}

// ShouldClearIndexes reports whether err's message indicates the orchestrator
// should drop and rebuild the affected tag's indexes rather than retry.
// Busy/lock-contention errors are checked first and never trigger a clear.
func ShouldClearIndexes(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	for _, p := range busyPatterns {
		if p.MatchString(msg) {
			return false
		}
	}
	for _, p := range clearingPatterns {
		if p.MatchString(msg) {
			return true
		}
	}
	return false
}
