package classify

import "testing"

func TestFastPath_NonJobNoiseDominant(t *testing.T) {
	c := New(nil, nil)
	res := c.Classify("Good morning everyone! Happy birthday to our group admin, hope your day is wonderful.")
	if res.IsJob {
		t.Fatalf("expected not-a-job, got IsJob=true reason=%q", res.Reason)
	}
	if res.Reason != ReasonNonJobDominant {
		t.Fatalf("expected reason %q, got %q", ReasonNonJobDominant, res.Reason)
	}
}

func TestFastPath_StrongJobSignals(t *testing.T) {
	c := New(nil, nil)
	text := "We are hiring a Backend Engineer with Python and AWS experience. Apply now: https://acme.co/apply"
	res := c.Classify(text)
	if !res.IsJob {
		t.Fatalf("expected job, got IsJob=false reason=%q", res.Reason)
	}
	if res.Reason != ReasonStrongSignals {
		t.Fatalf("expected reason %q, got %q", ReasonStrongSignals, res.Reason)
	}
	if res.Confidence != 0.95 {
		t.Fatalf("expected confidence 0.95, got %v", res.Confidence)
	}
}

func TestFastPath_IsConsistentRegardlessOfModel(t *testing.T) {
	// Any text satisfying the strong-signals predicate must return
	// is_job=true regardless of model outcome. A nil
	// model (which would otherwise force ReasonModelNotLoaded) must never
	// override a fast-path decision.
	c := New(nil, nil)
	text := "Hiring Data Analyst, SQL and Excel required. Apply here: careers@acme.co"
	res := c.Classify(text)
	if !res.IsJob || res.Reason != ReasonStrongSignals {
		t.Fatalf("fast-path must win over model absence: %+v", res)
	}
}

func TestClassify_FallsBackToModelNotLoaded(t *testing.T) {
	c := New(nil, nil)
	// Ambiguous text: no fast-path predicate fires.
	res := c.Classify("Quarterly update from the team, nothing urgent, check the thread for details and let us know your thoughts soon please.")
	if res.IsJob {
		t.Fatalf("expected false with no model loaded, got true")
	}
	if res.Reason != ReasonModelNotLoaded {
		t.Fatalf("expected reason %q, got %q", ReasonModelNotLoaded, res.Reason)
	}
	if res.Confidence != 0 {
		t.Fatalf("expected confidence 0, got %v", res.Confidence)
	}
}

func TestClassify_ModelFallbackWhenNoFastPath(t *testing.T) {
	examples := []TrainingExample{
		{Text: "We need a Java Developer with Spring Boot skills in Bangalore, send resume to hr@acme.co", IsJob: true},
		{Text: "Hiring React Developer remote position available now, apply with your portfolio link", IsJob: true},
		{Text: "Looking for Python Engineer experienced in Django, competitive salary, contact us today", IsJob: true},
		{Text: "Good morning everyone have a wonderful productive day today full of joy and laughter", IsJob: false},
		{Text: "Thanks for sharing the notes pdf yesterday it was really helpful for our exam prep", IsJob: false},
		{Text: "Movie download link is broken again can someone please post a fresh working mirror", IsJob: false},
	}
	model, err := Fit(examples, 500, 0.5)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	c := New(model, nil)

	res := c.Classify("We need a Ruby Developer with Rails skills in Pune, send resume to hr@acme.co today")
	if res.Reason == ReasonModelNotLoaded {
		t.Fatalf("model should be loaded: %+v", res)
	}
}
