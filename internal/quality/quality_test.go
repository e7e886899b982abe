package quality

import (
	"testing"

	"jobscrape/internal/model"
)

func TestExtractionCompleteness_FullyPopulated(t *testing.T) {
	salary := 50000
	min := 2
	cand := model.JobCandidate{
		Title:            "Backend Engineer",
		CompanyRaw:       "Acme",
		Location:         model.Location{Raw: "Bangalore"},
		SalaryMonthlyINR: &salary,
		Experience:       model.Experience{MinYears: &min},
		Apply:            model.ApplyChannel{URL: "https://acme.co/apply"},
	}
	s := New(model.Preferences{})
	score := s.Score(cand)
	if score.ExtractionCompleteness != 1.0 {
		t.Fatalf("ExtractionCompleteness = %v, want 1.0", score.ExtractionCompleteness)
	}
}

func TestExtractionCompleteness_Empty(t *testing.T) {
	s := New(model.Preferences{})
	score := s.Score(model.JobCandidate{})
	if score.ExtractionCompleteness != 0 {
		t.Fatalf("ExtractionCompleteness = %v, want 0", score.ExtractionCompleteness)
	}
}

func TestRelevanceScore_NoPreferencesIsFullyRelevant(t *testing.T) {
	s := New(model.Preferences{RelevanceThreshold: 0.5})
	score := s.Score(model.JobCandidate{Title: "Backend Engineer"})
	if score.RelevanceScore != 1.0 {
		t.Fatalf("RelevanceScore = %v, want 1.0 when no preference constraints set", score.RelevanceScore)
	}
}

func TestRelevanceScore_AllowedJobTypes(t *testing.T) {
	s := New(model.Preferences{AllowedJobTypes: []string{"internship"}})

	match := s.Score(model.JobCandidate{Title: "Backend Engineering Internship"})
	if match.RelevanceScore != 1.0 {
		t.Fatalf("RelevanceScore = %v, want 1.0 for a matching job type", match.RelevanceScore)
	}

	miss := s.Score(model.JobCandidate{Title: "Senior Backend Engineer"})
	if miss.RelevanceScore != 0 {
		t.Fatalf("RelevanceScore = %v, want 0 when the job type doesn't match", miss.RelevanceScore)
	}
}

func TestRelevanceScore_ExcludedSkills(t *testing.T) {
	s := New(model.Preferences{ExcludedSkills: []string{"php"}})

	clean := s.Score(model.JobCandidate{Skills: []string{"python", "sql"}})
	if clean.RelevanceScore != 1.0 {
		t.Fatalf("RelevanceScore = %v, want 1.0 with no excluded skill present", clean.RelevanceScore)
	}

	hit := s.Score(model.JobCandidate{Skills: []string{"php", "mysql"}})
	if hit.RelevanceScore != 0 {
		t.Fatalf("RelevanceScore = %v, want 0 when an excluded skill is present", hit.RelevanceScore)
	}
}

func TestRelevanceScore_MinModelConfidence(t *testing.T) {
	s := New(model.Preferences{MinModelConfidence: 0.8})

	confident := s.Score(model.JobCandidate{ModelConfidence: 0.95})
	if confident.RelevanceScore != 1.0 {
		t.Fatalf("RelevanceScore = %v, want 1.0 at confidence above the minimum", confident.RelevanceScore)
	}

	shaky := s.Score(model.JobCandidate{ModelConfidence: 0.5})
	if shaky.RelevanceScore != 0 {
		t.Fatalf("RelevanceScore = %v, want 0 at confidence below the minimum", shaky.RelevanceScore)
	}
}

func TestMeetsRelevance_ExcludedKeywordAlwaysFails(t *testing.T) {
	prefs := model.Preferences{RelevanceThreshold: 0.0, ExcludedKeywords: []string{"internship"}}
	s := New(prefs)
	cand := model.JobCandidate{Title: "Internship - Backend Engineer"}
	score := s.Score(cand)
	if score.MeetsRelevance {
		t.Fatalf("expected MeetsRelevance=false when an excluded keyword is present")
	}
}

func TestMeetsRelevance_BelowThresholdFails(t *testing.T) {
	prefs := model.Preferences{
		RelevanceThreshold: 0.9,
		AllowedLocations:   []string{"Mumbai"},
	}
	s := New(prefs)
	cand := model.JobCandidate{Title: "Backend Engineer", Location: model.Location{Cities: []string{"Bangalore"}}}
	score := s.Score(cand)
	if score.MeetsRelevance {
		t.Fatalf("expected MeetsRelevance=false below threshold, got relevance=%v", score.RelevanceScore)
	}
}

func TestIsActive_RequiresBothRelevanceAndQuality(t *testing.T) {
	lowQuality := Score{MeetsRelevance: true, QualityScore: 0.1}
	if IsActive(lowQuality, 0) {
		t.Fatalf("expected IsActive=false for quality below MinQuality")
	}

	notRelevant := Score{MeetsRelevance: false, QualityScore: 0.9}
	if IsActive(notRelevant, 0) {
		t.Fatalf("expected IsActive=false when not relevant")
	}

	active := Score{MeetsRelevance: true, QualityScore: MinQuality}
	if !IsActive(active, 0) {
		t.Fatalf("expected IsActive=true at the quality floor with relevance met")
	}

	strict := Score{MeetsRelevance: true, QualityScore: 0.5}
	if IsActive(strict, 0.7) {
		t.Fatalf("expected IsActive=false under a stricter configured floor")
	}
}

func TestExperienceInRange_Fresher(t *testing.T) {
	exp := model.Experience{IsFresher: true}
	if !experienceInRange(exp, 0, 2) {
		t.Fatalf("expected fresher to satisfy a min=0 range")
	}
	if experienceInRange(exp, 2, 5) {
		t.Fatalf("expected fresher to fail a min=2 range")
	}
}
