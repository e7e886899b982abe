package extract

import "strings"

// skillsLexicon is the fixed skills vocabulary the extractor intersects a
// section's text with. It shares many terms with the category keyword sets
// (not all of them: a category keyword is not necessarily a skill here) and
// adds a handful of general-purpose tools, kept intentionally small and
// curated.
var skillsLexicon = []string{
	"python", "java", "golang", "go", "javascript", "typescript", "react",
	"angular", "vue", "node", "django", "flask", "spring", "sql", "mysql",
	"postgresql", "mongodb", "aws", "azure", "gcp", "docker", "kubernetes",
	"excel", "power bi", "tableau", "figma", "photoshop", "illustrator",
	"seo", "sem", "content writing", "salesforce", "sap", "hr", "recruitment",
}

// extractSkills intersects section with skillsLexicon, capping at 10.
func extractSkills(section string) []string {
	lower := strings.ToLower(section)
	var out []string
	for _, s := range skillsLexicon {
		if strings.Contains(lower, s) {
			out = append(out, s)
			if len(out) == 10 {
				break
			}
		}
	}
	return out
}
