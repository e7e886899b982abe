package batcher

import "time"

// Trigger is what an external scheduler (clock, cron, manual) hands the
// Batcher to start a run. Function names which stage this trigger targets;
// the Batcher itself only interprets "batcher" triggers, but the type is
// shared with the CLI's dispatch so every stage speaks the same trigger
// shape.
type Trigger struct {
	Force    bool
	Function string
}

// WorkingHours is the single time-of-day gate in the pipeline: a fixed
// timezone plus two hour-of-day bounds, applied only at batch-trigger
// time. Downstream stages (scraper, classifier, extractor, ...) have no
// time-of-day dependency; only the decision to start a new ScrapeRun does.
type WorkingHours struct {
	Location  *time.Location
	StartHour int // inclusive, 0-23
	EndHour   int // inclusive, 0-23
}

// Allows reports whether now falls within the configured working-hours
// window once converted into wh's timezone. StartHour <= EndHour is the
// normal same-day window (e.g. 6..23); StartHour > EndHour wraps past
// midnight (e.g. 22..5 for an overnight window), in case an operator
// configures one.
func (wh WorkingHours) Allows(now time.Time) bool {
	loc := wh.Location
	if loc == nil {
		loc = time.UTC
	}
	hour := now.In(loc).Hour()
	if wh.StartHour <= wh.EndHour {
		return hour >= wh.StartHour && hour <= wh.EndHour
	}
	return hour >= wh.StartHour || hour <= wh.EndHour
}

// ShouldRun reports whether a trigger may start a run: it carries
// Force=true, or now falls within wh's working-hours window. This is the
// only place time-of-day ever gates the pipeline.
func (wh WorkingHours) ShouldRun(trigger Trigger, now time.Time) bool {
	if trigger.Force {
		return true
	}
	return wh.Allows(now)
}
