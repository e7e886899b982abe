// Package model defines the domain entities shared across pipeline stages:
// accounts, channels, raw messages, job candidates, canonical jobs,
// companies, and scrape runs. These are semantic types, not storage types —
// each store package maps them onto its own row/document representation.
package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AccountHealth is the lifecycle state of a platform account.
type AccountHealth string

const (
	AccountHealthy   AccountHealth = "healthy"
	AccountDegraded  AccountHealth = "degraded"
	AccountBanned    AccountHealth = "banned"
)

// Account is an authenticated identity on the messaging platform.
type Account struct {
	ID                int
	APIID             string
	APIHash           string
	IsActive          bool
	IsBanned          bool
	Health            AccountHealth
	ConsecutiveErrors int
	LastUsedAt        time.Time
	LastJoinAt        time.Time
	DailyJoins        int
	DailyJoinsDate    time.Time // date (in the configured timezone) DailyJoins was accumulated for
}

// ChannelStatus is the lifecycle label of a channel.
type ChannelStatus string

const (
	ChannelActive       ChannelStatus = "active"
	ChannelProbation    ChannelStatus = "probation"
	ChannelDeactivated  ChannelStatus = "deactivated"
)

// GeographicScope classifies where a job is located.
type GeographicScope string

const (
	ScopeIndia         GeographicScope = "india"
	ScopeInternational GeographicScope = "international"
	ScopeUnspecified   GeographicScope = "unspecified"
)

// Channel is a public group/broadcast harvested for job postings.
type Channel struct {
	ID                int
	Handle            string // unique, case-insensitive
	Title             string
	Category          string
	IsMember          bool
	AssignedAccountID *int
	LastSeenMessageID *int64 // nil until the first successful fetch
	LastScrapedAt     time.Time
	MessagesScraped   int64
	JobMessagesFound  int64
	QualityJobsFound  int64
	HealthScore       float64 // [0,100]
	Status            ChannelStatus
	DeactivationReason string
	// ConsecutiveLowHealthWindows counts consecutive Channel Scorer sweeps
	// where HealthScore fell below the probation threshold; reset to 0 on
	// any sweep that clears it.
	ConsecutiveLowHealthWindows int
}

// ProcessingOutcome is the terminal tag applied to a RawMessage once the
// classify/extract/persist stages have finished with it.
type ProcessingOutcome string

const (
	OutcomeNone      ProcessingOutcome = ""
	OutcomeJob       ProcessingOutcome = "job"
	OutcomeDuplicate ProcessingOutcome = "duplicate"
	OutcomeNotAJob   ProcessingOutcome = "not_a_job"
)

// RawMessage is a single platform message persisted verbatim.
type RawMessage struct {
	ID                  uuid.UUID
	PlatformMessageID   int64
	ChannelHandle       string
	Body                string
	SenderID            int64
	AuthoredAt          time.Time
	FetchedAt           time.Time
	FetchingAccountID   int
	Processed           bool
	ProcessingOutcome   ProcessingOutcome
	JobID               *uuid.UUID
}

// Key returns the compound uniqueness key for a RawMessage.
func (m RawMessage) Key() string {
	return m.ChannelHandle + "#" + strconv.FormatInt(m.PlatformMessageID, 10)
}

// Location is the extractor's structured reading of a job's place of work.
type Location struct {
	Raw             string
	Cities          []string
	IsRemote        bool
	IsHybrid        bool
	IsOnsiteOnly    bool
	GeographicScope GeographicScope
}

// Experience is a parsed experience-range requirement.
type Experience struct {
	Raw        string
	MinYears   *int
	MaxYears   *int
	IsFresher  bool
}

// ApplyChannel is how a candidate should apply: a URL and/or contact points.
type ApplyChannel struct {
	URL    string
	Emails []string
	Phones []string
}

// JobCandidate is a single extracted sub-posting, ephemeral until Deduper and
// Quality Scorer decide whether (and how) it becomes a persisted Job.
type JobCandidate struct {
	SourceMessageID  uuid.UUID
	Title            string
	CompanyRaw       string
	CompanyCanonical string
	Location         Location
	Experience       Experience
	SalaryMonthlyINR *int
	Skills           []string
	Category         string
	Apply            ApplyChannel
	ExtractionConfidence float64
	// ModelConfidence is the Classifier's is-job confidence for the source
	// message, carried along so relevance scoring can hold candidates to
	// the admin-configured minimum.
	ModelConfidence  float64
	QualityScore     float64
	RelevanceScore   float64
	MeetsRelevance   bool
	ContentHash      string
	ExtractedAt      time.Time
}

// Company is a canonicalized employer name.
type Company struct {
	ID           int
	CanonicalName string
	Verified     bool
}

// NormalizeCompanyName folds case, strips punctuation, and collapses
// whitespace so that "Acme, Inc." and "acme inc" resolve to the same
// Company row. Every store backend keys company resolution on this form.
func NormalizeCompanyName(name string) string {
	var b []rune
	lastSpace := true
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			b = append(b, r+('a'-'A'))
			lastSpace = false
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127:
			b = append(b, r)
			lastSpace = false
		default:
			if !lastSpace {
				b = append(b, ' ')
				lastSpace = true
			}
		}
	}
	for len(b) > 0 && b[len(b)-1] == ' ' {
		b = b[:len(b)-1]
	}
	return string(b)
}

// Job is a persisted, deduplicated, scored posting.
type Job struct {
	ID                uuid.UUID
	CompanyID         int
	SourceMessageID    uuid.UUID
	Title             string
	Location          Location
	Experience        Experience
	SalaryMonthlyINR  *int
	Skills            []string
	Category          string
	Apply             ApplyChannel
	QualityScore      float64
	RelevanceScore    float64
	ContentHash       string
	IsActive          bool
	CreatedAt         time.Time
	LastSeenAt        time.Time
	ViewCount         int64
	SaveCount         int64
}

// ScrapeRunStatus is the lifecycle state of one batcher invocation.
type ScrapeRunStatus string

const (
	ScrapeRunRunning ScrapeRunStatus = "running"
	ScrapeRunSuccess ScrapeRunStatus = "success"
	ScrapeRunPartial ScrapeRunStatus = "partial"
	ScrapeRunFailed  ScrapeRunStatus = "failed"
)

// ErrorDescriptor is a structured, user-visible error recorded against a run.
type ErrorDescriptor struct {
	Code           string
	ChannelHandle  string
	AccountID      int
	Message        string
}

// ScrapeRun is one end-to-end invocation of the batcher and its workers.
type ScrapeRun struct {
	ID               uuid.UUID
	StartedAt        time.Time
	FinishedAt       time.Time
	Status           ScrapeRunStatus
	AccountsUsed     int
	GroupsProcessed  int
	MessagesFetched  int
	JobsExtracted    int
	DuplicatesFound  int
	ErrorsCount      int
	Errors           []ErrorDescriptor
}

// Preferences is the admin-configured filter set driving relevance scoring.
// Owned by a collaborator (admin API); the core only reads it.
type Preferences struct {
	AllowedJobTypes     []string
	MinExperienceYears  int
	MaxExperienceYears  int
	AllowedLocations    []string
	AllowedWorkModes    []string // "remote", "hybrid", "onsite"
	PrioritySkills      []string
	ExcludedSkills      []string
	RequiredKeywords    []string
	ExcludedKeywords    []string
	MinModelConfidence  float64
	RelevanceThreshold  float64
}
