package extract

import (
	"strings"

	"jobscrape/internal/model"
)

var (
	cityWhitelist = []string{
		"bangalore", "bengaluru", "mumbai", "delhi", "new delhi", "pune",
		"hyderabad", "chennai", "gurgaon", "gurugram", "noida", "kolkata",
		"ahmedabad", "jaipur", "kochi", "indore", "chandigarh",
	}
	internationalWords = []string{
		"usa", "united states", "uk", "united kingdom", "canada",
		"australia", "singapore", "dubai", "germany", "california",
		"new york", "london", "costa mesa",
	}
	remoteWords       = []string{"remote", "work from home", "wfh"}
	remoteNegations   = []string{"no remote", "not remote", "remote not available"}
	hybridWords       = []string{"hybrid"}
	onsiteOnlyPhrases = []string{"onsite only", "on-site only", "must relocate", "no remote option"}
)

// extractLocation builds the structured reading of a section's location,
// including the remote/hybrid-overrides-onsite rule.
func extractLocation(section string) model.Location {
	lower := strings.ToLower(section)

	loc := model.Location{Raw: locationRawGuess(section)}

	for _, c := range cityWhitelist {
		if strings.Contains(lower, c) {
			loc.Cities = append(loc.Cities, titleCase(c))
		}
	}

	negatedRemote := containsAny(lower, remoteNegations)
	loc.IsRemote = containsAny(lower, remoteWords) && !negatedRemote
	loc.IsHybrid = containsAny(lower, hybridWords)
	loc.IsOnsiteOnly = containsAny(lower, onsiteOnlyPhrases)
	if loc.IsRemote || loc.IsHybrid {
		loc.IsOnsiteOnly = false
	}

	switch {
	case len(loc.Cities) > 0 && !containsAny(lower, internationalWords):
		loc.GeographicScope = model.ScopeIndia
	case containsAny(lower, internationalWords):
		loc.GeographicScope = model.ScopeInternational
	default:
		loc.GeographicScope = model.ScopeUnspecified
	}

	return loc
}

// locationRawGuess keeps a short raw excerpt mentioning a location keyword,
// useful for audit/display even though the structured fields are what
// downstream logic uses.
func locationRawGuess(section string) string {
	lower := strings.ToLower(section)
	for _, line := range strings.Split(section, "\n") {
		ll := strings.ToLower(line)
		if containsAny(ll, cityWhitelist) || containsAny(ll, internationalWords) || containsAny(ll, remoteWords) || containsAny(ll, hybridWords) {
			return strings.TrimSpace(line)
		}
	}
	_ = lower
	return ""
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
