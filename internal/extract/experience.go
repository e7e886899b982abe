package extract

import (
	"regexp"
	"strings"

	"jobscrape/internal/model"
)

var (
	fresherPattern   = regexp.MustCompile(`(?i)\b(fresher|fresh graduate|no experience required|entry level)\b`)
	expRangePattern  = regexp.MustCompile(`(?i)(\d{1,2})\s*-\s*(\d{1,2})\s*(?:years|yrs)`)
	expPlusPattern   = regexp.MustCompile(`(?i)(\d{1,2})\s*\+\s*(?:years|yrs)`)
	expMinPattern    = regexp.MustCompile(`(?i)(?:min(?:imum)?|at\s*least)\s*(\d{1,2})\s*(?:years|yrs)`)
	expSinglePattern = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:years|yrs)\.?`)
)

// extractExperience matches in precedence order: fresher keywords, then
// "N-M years", then "N+ years", then "min/atleast N years", then
// "N years.".
func extractExperience(section string) model.Experience {
	if fresherPattern.MatchString(section) {
		return model.Experience{Raw: "fresher", IsFresher: true}
	}
	if m := expRangePattern.FindStringSubmatch(section); m != nil {
		min, max := atoi(m[1]), atoi(m[2])
		return model.Experience{Raw: strings.TrimSpace(m[0]), MinYears: &min, MaxYears: &max}
	}
	if m := expPlusPattern.FindStringSubmatch(section); m != nil {
		min := atoi(m[1])
		return model.Experience{Raw: strings.TrimSpace(m[0]), MinYears: &min}
	}
	if m := expMinPattern.FindStringSubmatch(section); m != nil {
		min := atoi(m[1])
		return model.Experience{Raw: strings.TrimSpace(m[0]), MinYears: &min}
	}
	if m := expSinglePattern.FindStringSubmatch(section); m != nil {
		min := atoi(m[1])
		return model.Experience{Raw: strings.TrimSpace(m[0]), MinYears: &min, MaxYears: &min}
	}
	return model.Experience{}
}

func atoi(s string) int {
	return parseInt(s)
}
