// Package extract implements the Extractor: splitting a RawMessage into
// 1..N job sub-postings and pulling structured fields (company, title,
// location, experience, salary, skills, contact, apply link) out of each.
package extract

import (
	"log/slog"
	"time"

	"jobscrape/internal/logging"
	"jobscrape/internal/model"
)

// MinConfidence is the extraction-confidence floor below which a candidate
// is rejected outright.
const MinConfidence = 0.3

// Extractor turns one RawMessage into zero or more JobCandidates.
type Extractor struct {
	logger        *slog.Logger
	now           func() time.Time
	minConfidence float64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMinConfidence overrides the extraction-confidence floor.
func WithMinConfidence(v float64) Option {
	return func(e *Extractor) {
		if v > 0 {
			e.minConfidence = v
		}
	}
}

// New constructs an Extractor.
func New(logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		logger:        logging.Default(logger).With("component", "extract"),
		now:           time.Now,
		minConfidence: MinConfidence,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract splits msg.Body and extracts a JobCandidate from each section,
// dropping sections that fail the international onsite-only filter gate or
// fall under MinConfidence.
func (e *Extractor) Extract(msg model.RawMessage, urls []string) []model.JobCandidate {
	sections := split(msg.Body)
	out := make([]model.JobCandidate, 0, len(sections))
	for _, section := range sections {
		cand, ok := e.extractSection(msg, section, urls)
		if !ok {
			continue
		}
		out = append(out, cand)
	}
	return out
}

func (e *Extractor) extractSection(msg model.RawMessage, section string, urls []string) (model.JobCandidate, bool) {
	apply := extractApply(section, urls)
	company := extractCompany(section, urls, apply.Emails, apply.Phones)
	title := extractTitle(section, company)
	location := extractLocation(section)

	// Filter gate: international onsite-only, not remote, not hybrid is a
	// firm business rule rejection regardless of any other field quality.
	if location.GeographicScope == model.ScopeInternational && location.IsOnsiteOnly && !location.IsRemote && !location.IsHybrid {
		return model.JobCandidate{}, false
	}

	salary := extractSalary(section)
	experience := extractExperience(section)
	skills := extractSkills(section)
	category := extractCategory(section)

	confidence := extractionConfidence(company, title, location, salary, apply, experience)
	if confidence < e.minConfidence {
		return model.JobCandidate{}, false
	}

	return model.JobCandidate{
		SourceMessageID:  msg.ID,
		Title:            title,
		CompanyRaw:       company,
		CompanyCanonical: model.NormalizeCompanyName(company),
		Location:         location,
		Experience:       experience,
		SalaryMonthlyINR: salary,
		Skills:           skills,
		Category:         category,
		Apply:            apply,
		ExtractionConfidence: confidence,
		ExtractedAt:      e.now(),
	}, true
}

// extractionConfidence weighs company and title at 0.3 each,
// location/salary/apply-channel/experience at 0.1 each, and email presence
// at 0.05, capped at 1.0.
func extractionConfidence(company, title string, loc model.Location, salary *int, apply model.ApplyChannel, exp model.Experience) float64 {
	var score float64
	if company != "" {
		score += 0.3
	}
	if title != "" {
		score += 0.3
	}
	if loc.Raw != "" || len(loc.Cities) > 0 || loc.IsRemote || loc.IsHybrid {
		score += 0.1
	}
	if salary != nil {
		score += 0.1
	}
	if apply.URL != "" {
		score += 0.1
	}
	if exp.MinYears != nil || exp.IsFresher {
		score += 0.1
	}
	if len(apply.Emails) > 0 {
		score += 0.05
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
