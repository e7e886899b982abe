package classify

import (
	"regexp"
	"strings"
)

var (
	salaryPattern     = regexp.MustCompile(`(?i)\b\d{1,3}(\.\d+)?\s*(lpa|lakh|l\s*p\s*a)\b|\brs\.?\s*\d{4,6}\b|\b\d{2,3}\s*k\b`)
	experiencePattern = regexp.MustCompile(`(?i)\b\d{1,2}\s*[-+]?\s*\d{0,2}\s*(years|yrs|year)\b|\bfresher\b`)
	emailPattern      = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	urlPattern        = regexp.MustCompile(`(?i)https?://[^\s]+`)
	bulletPattern     = regexp.MustCompile(`(?m)^\s*([0-9]+[.)]|[-*•])\s+`)
)

// Features is the handcrafted feature vector extracted from a normalized
// message, used both by the fast-path rules and as extra dimensions
// appended to the TF-IDF vector the trained model scores.
type Features struct {
	TokenCount int

	HasJobIntent    bool
	HasRoleTitle    bool
	HasSkill        bool
	HasLocation     bool
	HasJobType      bool
	HasApplyIntent  bool
	HasNonJobNoise  bool

	JobIntentCount int
	NonJobCount    int

	HasSalaryPattern     bool
	HasExperiencePattern bool
	HasEmail             bool
	HasURL               bool

	ReasonableLength bool // token count in [20, 500]
	HasBulletOrList  bool
}

// Extract computes Features over an already-normalized message body.
func Extract(normalized string) Features {
	lower := strings.ToLower(normalized)
	tokens := strings.Fields(lower)

	f := Features{
		TokenCount:           len(tokens),
		HasJobIntent:         containsAny(lower, jobIntentWords),
		HasRoleTitle:         containsAny(lower, roleTitleWords),
		HasSkill:             containsAny(lower, techSkillWords),
		HasLocation:          containsAny(lower, locationWords),
		HasJobType:           containsAny(lower, jobTypeWords),
		HasApplyIntent:       containsAny(lower, applyIntentWords),
		HasNonJobNoise:       containsAny(lower, nonJobNoiseWords),
		JobIntentCount:       countAny(lower, jobIntentWords),
		NonJobCount:          countAny(lower, nonJobNoiseWords),
		HasSalaryPattern:     salaryPattern.MatchString(lower),
		HasExperiencePattern: experiencePattern.MatchString(lower),
		HasEmail:             emailPattern.MatchString(lower),
		HasURL:               urlPattern.MatchString(lower),
		HasBulletOrList:      bulletPattern.MatchString(normalized),
	}
	f.ReasonableLength = f.TokenCount >= 20 && f.TokenCount <= 500
	return f
}

// Vector returns Features as a fixed-order numeric vector, appended to the
// TF-IDF vector before scoring by the trained model. Its length must stay in
// sync with handcraftedFeatureCount.
func (f Features) Vector() []float64 {
	return []float64{
		boolf(f.HasJobIntent), boolf(f.HasRoleTitle), boolf(f.HasSkill),
		boolf(f.HasLocation), boolf(f.HasJobType), boolf(f.HasApplyIntent),
		boolf(f.HasNonJobNoise), float64(f.JobIntentCount), float64(f.NonJobCount),
		boolf(f.HasSalaryPattern), boolf(f.HasExperiencePattern), boolf(f.HasEmail),
		boolf(f.HasURL), boolf(f.ReasonableLength), boolf(f.HasBulletOrList),
	}
}

const handcraftedFeatureCount = 15

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ExtractURLsAndEmails pulls out URLs and email addresses so later stages
// (the Extractor) can use them without re-scanning the full message.
func ExtractURLsAndEmails(text string) (urls []string, emails []string) {
	return urlPattern.FindAllString(text, -1), emailPattern.FindAllString(text, -1)
}

// Normalize strips leading/trailing whitespace and collapses consecutive
// duplicate whitespace-separated tokens (a common forwarding artifact:
// "hiring hiring hiring for..."), while leaving URLs and emails intact.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for i, tok := range fields {
		if i > 0 && tok == fields[i-1] {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}
