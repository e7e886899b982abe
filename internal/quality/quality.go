// Package quality implements the Quality Scorer: per-candidate completeness,
// quality, and relevance scoring against admin-configured preferences.
package quality

import (
	"strings"

	"jobscrape/internal/model"
)

// MinQuality is the quality_score floor a job must clear to be persisted
// active.
const MinQuality = 0.4

// Score holds the Quality Scorer's output for one JobCandidate.
type Score struct {
	ExtractionCompleteness float64
	QualityScore           float64
	RelevanceScore         float64
	MeetsRelevance         bool
}

// Scorer computes Score against a fixed Preferences snapshot.
type Scorer struct {
	prefs model.Preferences
}

// New constructs a Scorer bound to prefs. Preferences change relatively
// infrequently (admin-configured), so callers re-construct a Scorer whenever
// the active Preferences row changes rather than passing it per call.
func New(prefs model.Preferences) *Scorer {
	return &Scorer{prefs: prefs}
}

// Score computes extraction_completeness, quality_score, relevance_score,
// and meets_relevance_criteria for cand.
func (s *Scorer) Score(cand model.JobCandidate) Score {
	completeness := extractionCompleteness(cand)
	quality := qualityScore(completeness, cand)
	relevance := s.relevanceScore(cand)
	meets := relevance >= s.prefs.RelevanceThreshold && !hasExcludedKeyword(cand, s.prefs.ExcludedKeywords)

	return Score{
		ExtractionCompleteness: completeness,
		QualityScore:           quality,
		RelevanceScore:         relevance,
		MeetsRelevance:         meets,
	}
}

// IsActive reports whether a job scoring sc clears minQuality and the
// relevance criteria, the activation rule the Persister applies. A
// non-positive minQuality falls back to MinQuality.
func IsActive(sc Score, minQuality float64) bool {
	if minQuality <= 0 {
		minQuality = MinQuality
	}
	return sc.MeetsRelevance && sc.QualityScore >= minQuality
}

// extractionCompleteness is the fraction of {title, company, location,
// salary, experience, apply} populated.
func extractionCompleteness(cand model.JobCandidate) float64 {
	total := 6.0
	populated := 0.0
	if cand.Title != "" {
		populated++
	}
	if cand.CompanyRaw != "" {
		populated++
	}
	if cand.Location.Raw != "" || len(cand.Location.Cities) > 0 || cand.Location.IsRemote || cand.Location.IsHybrid {
		populated++
	}
	if cand.SalaryMonthlyINR != nil {
		populated++
	}
	if cand.Experience.MinYears != nil || cand.Experience.IsFresher {
		populated++
	}
	if cand.Apply.URL != "" || len(cand.Apply.Emails) > 0 || len(cand.Apply.Phones) > 0 {
		populated++
	}
	return populated / total
}

// qualityScore weighs completeness most heavily, then skill-list richness,
// then experience/salary specificity.
func qualityScore(completeness float64, cand model.JobCandidate) float64 {
	skillRichness := float64(len(cand.Skills)) / 10.0
	if skillRichness > 1.0 {
		skillRichness = 1.0
	}

	specificity := 0.0
	if cand.Experience.MinYears != nil && cand.Experience.MaxYears != nil {
		specificity += 0.5
	} else if cand.Experience.MinYears != nil || cand.Experience.IsFresher {
		specificity += 0.25
	}
	if cand.SalaryMonthlyINR != nil {
		specificity += 0.5
	}

	score := 0.6*completeness + 0.25*skillRichness + 0.15*specificity
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// relevanceScore matches cand against the active Preferences: allowed job
// types/locations/work modes, experience range, priority/excluded skills,
// required keywords, and minimum model confidence. Each configured
// preference contributes one check; the score is the fraction satisfied.
func (s *Scorer) relevanceScore(cand model.JobCandidate) float64 {
	prefs := s.prefs
	var hits, checks float64

	if len(prefs.AllowedJobTypes) > 0 {
		checks++
		if jobTypeMatches(cand, prefs.AllowedJobTypes) {
			hits++
		}
	}
	if len(prefs.AllowedLocations) > 0 {
		checks++
		if locationMatches(cand.Location, prefs.AllowedLocations) {
			hits++
		}
	}
	if len(prefs.AllowedWorkModes) > 0 {
		checks++
		if workModeMatches(cand.Location, prefs.AllowedWorkModes) {
			hits++
		}
	}
	if prefs.MaxExperienceYears > 0 || prefs.MinExperienceYears > 0 {
		checks++
		if experienceInRange(cand.Experience, prefs.MinExperienceYears, prefs.MaxExperienceYears) {
			hits++
		}
	}
	if len(prefs.RequiredKeywords) > 0 {
		checks++
		if anyKeywordPresent(cand, prefs.RequiredKeywords) {
			hits++
		}
	}
	if len(prefs.PrioritySkills) > 0 {
		checks++
		if skillOverlap(cand.Skills, prefs.PrioritySkills) {
			hits++
		}
	}
	if len(prefs.ExcludedSkills) > 0 {
		checks++
		if !skillOverlap(cand.Skills, prefs.ExcludedSkills) {
			hits++
		}
	}
	if prefs.MinModelConfidence > 0 {
		checks++
		if cand.ModelConfidence >= prefs.MinModelConfidence {
			hits++
		}
	}

	if checks == 0 {
		return 1.0
	}
	return hits / checks
}

// jobTypeMatches reports whether any allowed job type (e.g. "full time",
// "internship") appears in the candidate's category or title.
func jobTypeMatches(cand model.JobCandidate, allowed []string) bool {
	haystack := strings.ToLower(cand.Category + " " + cand.Title)
	for _, jt := range allowed {
		if jt == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(jt)) {
			return true
		}
	}
	return false
}

func hasExcludedKeyword(cand model.JobCandidate, excluded []string) bool {
	if len(excluded) == 0 {
		return false
	}
	haystack := strings.ToLower(cand.Title + " " + strings.Join(cand.Skills, " "))
	for _, kw := range excluded {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func anyKeywordPresent(cand model.JobCandidate, keywords []string) bool {
	haystack := strings.ToLower(cand.Title + " " + strings.Join(cand.Skills, " "))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func skillOverlap(candidateSkills, prioritySkills []string) bool {
	set := make(map[string]bool, len(candidateSkills))
	for _, s := range candidateSkills {
		set[strings.ToLower(s)] = true
	}
	for _, s := range prioritySkills {
		if set[strings.ToLower(s)] {
			return true
		}
	}
	return false
}

func locationMatches(loc model.Location, allowed []string) bool {
	for _, a := range allowed {
		al := strings.ToLower(a)
		if al == "remote" && loc.IsRemote {
			return true
		}
		if al == "hybrid" && loc.IsHybrid {
			return true
		}
		for _, c := range loc.Cities {
			if strings.EqualFold(c, a) {
				return true
			}
		}
	}
	return false
}

func workModeMatches(loc model.Location, allowed []string) bool {
	for _, a := range allowed {
		switch strings.ToLower(a) {
		case "remote":
			if loc.IsRemote {
				return true
			}
		case "hybrid":
			if loc.IsHybrid {
				return true
			}
		case "onsite":
			if !loc.IsRemote && !loc.IsHybrid {
				return true
			}
		}
	}
	return false
}

func experienceInRange(exp model.Experience, min, max int) bool {
	if exp.IsFresher {
		return min == 0
	}
	if exp.MinYears == nil {
		return true
	}
	if *exp.MinYears < min {
		return false
	}
	if max > 0 && *exp.MinYears > max {
		return false
	}
	return true
}
