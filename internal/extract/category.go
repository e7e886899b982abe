package extract

import "strings"

// categoryKeywords assigns a primary (weight 3) or secondary (weight 1)
// score to each category.
var categoryKeywords = map[string]struct{ primary, secondary []string }{
	"tech": {
		primary:   []string{"engineer", "developer", "programmer", "software", "backend", "frontend", "full stack"},
		secondary: []string{"python", "java", "golang", "javascript", "api", "cloud"},
	},
	"data": {
		primary:   []string{"data analyst", "data scientist", "data engineer", "machine learning", "ml engineer"},
		secondary: []string{"sql", "excel", "tableau", "power bi", "statistics"},
	},
	"design": {
		primary:   []string{"ui designer", "ux designer", "graphic designer", "product designer"},
		secondary: []string{"figma", "photoshop", "illustrator", "sketch"},
	},
	"marketing": {
		primary:   []string{"marketing executive", "digital marketing", "social media manager", "content marketing"},
		secondary: []string{"seo", "sem", "content writing", "campaign"},
	},
	"non-tech": {
		primary:   []string{"hr executive", "sales executive", "accountant", "operations manager"},
		secondary: []string{"recruitment", "accounting", "logistics", "customer support"},
	},
}

// categoryOrder fixes iteration order for deterministic scoring. tech sits
// first so it wins ordinary ties; the data-over-tech override below applies
// only at scores >= 5.
var categoryOrder = []string{"tech", "data", "design", "marketing", "non-tech"}

// extractCategory picks the best-scoring category by weighted keywords.
func extractCategory(section string) string {
	lower := strings.ToLower(section)
	scores := make(map[string]int, len(categoryKeywords))
	for cat, kw := range categoryKeywords {
		score := 0
		for _, p := range kw.primary {
			if strings.Contains(lower, p) {
				score += 3
			}
		}
		for _, s := range kw.secondary {
			if strings.Contains(lower, s) {
				score += 1
			}
		}
		scores[cat] = score
	}

	best, bestScore := "unspecified", 0
	for _, cat := range categoryOrder {
		score := scores[cat]
		if score > bestScore {
			best, bestScore = cat, score
		}
	}
	if bestScore == 0 {
		return "unspecified"
	}
	if best == "tech" && scores["data"] == scores["tech"] && scores["data"] >= 5 {
		return "data"
	}
	return best
}
