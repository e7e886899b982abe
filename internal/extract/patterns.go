package extract

import "regexp"

var (
	urlPattern   = regexp.MustCompile(`(?i)https?://[^\s]+`)
	emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	// phonePattern matches common Indian mobile number shapes: optional +91
	// or 0 prefix, then a 10-digit number starting 6-9, optionally
	// hyphen/space separated into groups.
	phonePattern = regexp.MustCompile(`(?:\+?91[-\s]?|0)?[6-9]\d{9}\b`)
)
