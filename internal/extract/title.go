package extract

import (
	"regexp"
	"strings"
)

var (
	titleLabelPattern    = regexp.MustCompile(`(?i)(?:role|position)\s*[:\-]\s*([^\n,]{2,60})`)
	hiringForPattern     = regexp.MustCompile(`(?i)hiring\s+for\s+([^\n,.]{2,60})`)
	leadingNumberPattern = regexp.MustCompile(`^\s*\d+[.)]\s*`)
	roleSuffixWords      = []string{
		"engineer", "developer", "manager", "analyst", "designer",
		"architect", "lead", "intern", "specialist", "consultant",
	}
)

// titleFromLine trims a candidate title line down to the role phrase: drop
// any leading list numbering, then cut at the first " at " (company
// introducer) or comma, whichever comes first.
func titleFromLine(line string) string {
	line = leadingNumberPattern.ReplaceAllString(line, "")
	cut := len(line)
	if idx := strings.Index(strings.ToLower(line), " at "); idx >= 0 && idx < cut {
		cut = idx
	}
	if idx := strings.IndexByte(line, ','); idx >= 0 && idx < cut {
		cut = idx
	}
	return strings.TrimSpace(line[:cut])
}

// extractTitle tries, in priority order: labeled patterns first, then
// "hiring for X", then a line containing a closed-set role suffix. The
// title must not equal the extracted company name
// (case-insensitive), since a line like "Acme is hiring" would otherwise
// satisfy both the company and title heuristics with the same string.
func extractTitle(section, company string) string {
	candidates := []string{}
	if m := titleLabelPattern.FindStringSubmatch(section); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if m := hiringForPattern.FindStringSubmatch(section); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		for _, suffix := range roleSuffixWords {
			if strings.Contains(lower, suffix) {
				candidates = append(candidates, titleFromLine(line))
				break
			}
		}
	}

	companyLower := strings.ToLower(strings.TrimSpace(company))
	for _, c := range candidates {
		c = strings.Trim(c, " .:-")
		if c == "" {
			continue
		}
		if companyLower != "" && strings.ToLower(c) == companyLower {
			continue
		}
		if len(c) > 80 {
			continue
		}
		return c
	}
	return ""
}
