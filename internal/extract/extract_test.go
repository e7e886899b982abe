package extract

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"jobscrape/internal/model"
)

func newTestExtractor() *Extractor {
	return New(nil)
}

// TestExtract_MultiJobSplit: a single message listing two numbered job
// postings must split into two candidates, each with its own company,
// title, and salary/experience reading.
func TestExtract_MultiJobSplit(t *testing.T) {
	body := "1. Backend Engineer at Acme, Bangalore, 3-5 yrs, 18 LPA. Apply: https://acme.co/apply\n" +
		"2. Data Analyst at Acme, Remote, Fresher. Apply: https://acme.co/apply2"

	msg := model.RawMessage{
		ID:            uuid.New(),
		ChannelHandle: "testchannel",
		Body:          body,
		FetchedAt:     time.Now(),
	}

	e := newTestExtractor()
	candidates := e.Extract(msg, ExtractURLs(body))

	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(candidates), candidates)
	}

	first, second := candidates[0], candidates[1]

	if first.CompanyRaw != "Acme" {
		t.Errorf("first.CompanyRaw = %q, want Acme", first.CompanyRaw)
	}
	if second.CompanyRaw != "Acme" {
		t.Errorf("second.CompanyRaw = %q, want Acme", second.CompanyRaw)
	}

	if first.Title != "Backend Engineer" {
		t.Errorf("first.Title = %q, want %q", first.Title, "Backend Engineer")
	}
	if second.Title != "Data Analyst" {
		t.Errorf("second.Title = %q, want %q", second.Title, "Data Analyst")
	}

	if first.SalaryMonthlyINR == nil || *first.SalaryMonthlyINR != 150000 {
		t.Errorf("first.SalaryMonthlyINR = %v, want 150000", first.SalaryMonthlyINR)
	}
	if second.SalaryMonthlyINR != nil {
		t.Errorf("second.SalaryMonthlyINR = %v, want nil", second.SalaryMonthlyINR)
	}

	if !second.Experience.IsFresher {
		t.Errorf("second.Experience.IsFresher = false, want true")
	}
	if first.Experience.MinYears == nil || *first.Experience.MinYears != 3 {
		t.Errorf("first.Experience.MinYears = %v, want 3", first.Experience.MinYears)
	}
	if first.Experience.MaxYears == nil || *first.Experience.MaxYears != 5 {
		t.Errorf("first.Experience.MaxYears = %v, want 5", first.Experience.MaxYears)
	}
}

// TestExtract_InternationalOnsiteRejected: a job located abroad with no
// remote/hybrid option and an explicit onsite-only phrase must be rejected
// outright by the filter gate.
func TestExtract_InternationalOnsiteRejected(t *testing.T) {
	body := "Senior Engineer at Globex, London, onsite only, must relocate. Apply: https://globex.com/careers"

	msg := model.RawMessage{
		ID:            uuid.New(),
		ChannelHandle: "testchannel",
		Body:          body,
		FetchedAt:     time.Now(),
	}

	e := newTestExtractor()
	candidates := e.Extract(msg, ExtractURLs(body))

	if len(candidates) != 0 {
		t.Fatalf("expected international onsite-only posting to be rejected, got %d candidates: %+v", len(candidates), candidates)
	}
}

// TestExtract_InternationalRemoteAccepted confirms the remote/hybrid
// override: an international posting that also offers remote work is not
// rejected by the onsite-only filter gate.
func TestExtract_InternationalRemoteAccepted(t *testing.T) {
	body := "Senior Engineer at Globex, London, Remote. Apply: https://globex.com/careers"

	msg := model.RawMessage{
		ID:            uuid.New(),
		ChannelHandle: "testchannel",
		Body:          body,
		FetchedAt:     time.Now(),
	}

	e := newTestExtractor()
	candidates := e.Extract(msg, ExtractURLs(body))

	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate for remote international posting, got %d", len(candidates))
	}
	if candidates[0].Location.GeographicScope != model.ScopeInternational {
		t.Errorf("GeographicScope = %v, want international", candidates[0].Location.GeographicScope)
	}
	if !candidates[0].Location.IsRemote {
		t.Errorf("IsRemote = false, want true")
	}
}

func TestExtractSalary_KValueBounds(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *int
	}{
		{"range below single floor accepted", "Stipend: 3-10k per month", intPtr(6500)},
		{"single below floor rejected", "Stipend: 3k per month", nil},
		{"single within bounds", "Salary 25k per month", intPtr(25000)},
		{"range above cap rejected", "Salary 50-120k", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractSalary(tt.text)
			switch {
			case tt.want == nil && got != nil:
				t.Fatalf("extractSalary(%q) = %d, want nil", tt.text, *got)
			case tt.want != nil && got == nil:
				t.Fatalf("extractSalary(%q) = nil, want %d", tt.text, *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Fatalf("extractSalary(%q) = %d, want %d", tt.text, *got, *tt.want)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

// TestSplit_Stable asserts that splitting the same text twice produces
// identical sections, since it depends only on regexp match offsets.
func TestSplit_Stable(t *testing.T) {
	body := "1. Backend Engineer at Acme, Bangalore\n2. Data Analyst at Acme, Remote"

	first := split(body)
	second := split(body)

	if len(first) != len(second) {
		t.Fatalf("split is not stable: got %d sections then %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("section %d differs between calls: %q vs %q", i, first[i], second[i])
		}
	}
}

func TestSplit_SingleSectionWhenNoHeuristicMatches(t *testing.T) {
	body := "We are looking for a Backend Engineer at Acme in Bangalore, 18 LPA."
	sections := split(body)
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d: %+v", len(sections), sections)
	}
}

// ExtractURLs is a small test helper standing in for the URL list the
// Classifier's side channel supplies in the real pipeline.
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}
