package classify

import "strings"

// Keyword sets drive both the rule fast-paths and the handcrafted feature
// vector fed to the trained model. They are intentionally small, curated
// lists rather than an exhaustive lexicon.
var (
	jobIntentWords = []string{
		"hiring", "we are hiring", "job opening", "vacancy", "recruiting",
		"job opportunity", "walk-in", "walkin", "urgent requirement",
		"openings for", "looking for candidates",
	}

	roleTitleWords = []string{
		"engineer", "developer", "manager", "analyst", "designer",
		"architect", "lead", "intern", "specialist", "consultant",
		"executive", "associate",
	}

	techSkillWords = []string{
		"python", "java", "golang", "javascript", "typescript", "react",
		"node", "sql", "aws", "docker", "kubernetes", "django", "flask",
		"excel", "figma", "seo", "salesforce",
	}

	locationWords = []string{
		"bangalore", "bengaluru", "mumbai", "delhi", "pune", "hyderabad",
		"chennai", "gurgaon", "gurugram", "noida", "remote", "hybrid",
		"onsite", "pan india",
	}

	jobTypeWords = []string{
		"full time", "full-time", "part time", "part-time", "internship",
		"contract", "freelance", "work from home", "wfh",
	}

	applyIntentWords = []string{
		"apply", "apply now", "apply here", "send your resume", "send cv",
		"dm to apply", "interested candidates", "share your resume",
	}

	// nonJobNoiseWords mark a message as very unlikely to be a job posting
	// — announcements, study material, unrelated group chatter.
	nonJobNoiseWords = []string{
		"good morning", "happy birthday", "webinar recording", "notes pdf",
		"join our telegram group for", "forwarded as received", "breaking news",
		"movie download", "giveaway", "lottery",
	}
)

// containsAny reports whether text (already lowercased) contains any word
// in words.
func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// countAny counts how many distinct words from words occur in text.
func countAny(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
