package extract

import (
	"regexp"
	"strings"
)

var (
	mentionPattern     = regexp.MustCompile(`@([A-Za-z][\w]{1,40})`)
	isHiringExtract    = regexp.MustCompile(`(?i)\b([A-Z][\w&.\- ]{1,40}?)\s+is hiring\b`)
	quotedNamePattern  = regexp.MustCompile(`["“]([^"”]{2,50})["”]`)
	companyLabelPattern = regexp.MustCompile(`(?i)(?:company|organization|organisation)\s*[:\-]\s*([^\n,]{2,50})`)
	joinPattern        = regexp.MustCompile(`(?i)\bjoin\s+([A-Z][\w&.\- ]{1,40})\b`)
	// atCompanyPattern catches the common "<Title> at <Company>," shape,
	// which none of the other heuristics reach; it slots just below the
	// @mention priority.
	atCompanyPattern = regexp.MustCompile(`\bat\s+([A-Z][\w&.\-]{1,40})\b`)

	roleGenericWords = map[string]bool{
		"we": true, "job": true, "jobs": true, "hiring": true, "team": true,
		"company": true, "opportunity": true, "position": true, "urgent": true,
		"apply": true, "role": true,
	}
)

// extractCompany tries the company heuristics in priority order, returning
// the first candidate that passes validity filtering.
func extractCompany(section string, urls, emails, phones []string) string {
	candidates := []string{}
	if m := mentionPattern.FindStringSubmatch(section); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := atCompanyPattern.FindStringSubmatch(section); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := isHiringExtract.FindStringSubmatch(section); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := quotedNamePattern.FindStringSubmatch(section); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := companyLabelPattern.FindStringSubmatch(section); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := joinPattern.FindStringSubmatch(section); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if first := firstLineHeuristic(section); first != "" {
		candidates = append(candidates, first)
	}

	for _, c := range candidates {
		if validCompanyName(c, urls, emails, phones) {
			return c
		}
	}
	return ""
}

// firstLineHeuristic treats a short, capitalized first line as a company
// name candidate, the lowest-priority heuristic.
func firstLineHeuristic(section string) string {
	lines := strings.SplitN(section, "\n", 2)
	first := strings.TrimSpace(lines[0])
	if len(first) < 2 || len(first) > 40 {
		return ""
	}
	if first[0] < 'A' || first[0] > 'Z' {
		return ""
	}
	return first
}

// validCompanyName rejects role-generic words, embedded URLs/emails/phones,
// and names outside the [2,50] length window.
func validCompanyName(name string, urls, emails, phones []string) bool {
	name = strings.TrimSpace(name)
	if len(name) < 2 || len(name) > 50 {
		return false
	}
	if roleGenericWords[strings.ToLower(name)] {
		return false
	}
	for _, u := range urls {
		if strings.Contains(name, u) {
			return false
		}
	}
	for _, e := range emails {
		if strings.Contains(name, e) {
			return false
		}
	}
	for _, p := range phones {
		if p != "" && strings.Contains(name, p) {
			return false
		}
	}
	if urlPattern.MatchString(name) || emailPattern.MatchString(name) {
		return false
	}
	return true
}
