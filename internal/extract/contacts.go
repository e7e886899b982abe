package extract

import (
	"strings"

	"jobscrape/internal/model"
)

var applyURLMarkers = []string{"career", "careers", "job", "jobs", "ats", "greenhouse", "lever", "workday"}

// extractApply builds an ApplyChannel for section, given the message-level
// URL list detected up front by the Classifier's side channel. Apply-URL
// preference order: a URL adjacent to "apply" or carrying a career/job/ATS
// marker, else the first supplied URL, else any URL found directly in the
// section text.
func extractApply(section string, messageURLs []string) model.ApplyChannel {
	emails := dedupe(emailPattern.FindAllString(section, -1))
	phones := dedupe(phonePattern.FindAllString(section, -1))

	sectionURLs := urlPattern.FindAllString(section, -1)

	apply := model.ApplyChannel{Emails: emails, Phones: phones}
	apply.URL = bestApplyURL(section, sectionURLs, messageURLs)
	return apply
}

func bestApplyURL(section string, sectionURLs, messageURLs []string) string {
	lower := strings.ToLower(section)
	for _, u := range append(append([]string{}, sectionURLs...), messageURLs...) {
		if isAdjacentToApply(lower, strings.ToLower(u)) {
			return u
		}
	}
	for _, u := range append(append([]string{}, sectionURLs...), messageURLs...) {
		lu := strings.ToLower(u)
		for _, marker := range applyURLMarkers {
			if strings.Contains(lu, marker) {
				return u
			}
		}
	}
	if len(messageURLs) > 0 {
		return messageURLs[0]
	}
	if len(sectionURLs) > 0 {
		return sectionURLs[0]
	}
	return ""
}

func isAdjacentToApply(lowerSection, lowerURL string) bool {
	idx := strings.Index(lowerSection, lowerURL)
	if idx < 0 {
		return false
	}
	window := 20
	start := idx - window
	if start < 0 {
		start = 0
	}
	before := lowerSection[start:idx]
	return strings.Contains(before, "apply")
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	var out []string
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
