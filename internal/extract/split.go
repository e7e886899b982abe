package extract

import "regexp"

var (
	numberedSectionPattern = regexp.MustCompile(`(?m)^\s*\d+[.)]\s+\S`)
	isHiringPattern        = regexp.MustCompile(`(?i)\b[A-Z][\w&.\- ]{1,40}\s+is hiring\b`)
	applyDelimiterPattern  = regexp.MustCompile(`(?i)apply\s+here\s*:`)
)

// split partitions text into 1..N job sections, applying three splitting
// heuristics in order (numbered sections, "is hiring" blocks, "Apply
// here:" delimiters): first match wins. When none match, the entire text
// is treated as a single section.
//
// Sections are delimited at the start offset of each match of the winning
// heuristic's pattern; the final section runs to the end of text. This
// keeps splitting deterministic and stable under repeated calls, since it
// depends only on regexp match positions, never on map iteration order or
// anything else non-deterministic.
func split(text string) []string {
	if locs := numberedSectionPattern.FindAllStringIndex(text, -1); len(locs) >= 2 {
		return sectionsFromOffsets(text, locs)
	}
	if locs := isHiringPattern.FindAllStringIndex(text, -1); len(locs) >= 2 {
		return sectionsFromOffsets(text, locs)
	}
	if locs := applyDelimiterPattern.FindAllStringIndex(text, -1); len(locs) >= 3 {
		// "Apply here:" delimiters mark the END of a section, not the
		// start. The apply link itself sits on the delimiter's line, so a
		// section runs through the end of that line rather than stopping
		// at the delimiter.
		offsets := make([][]int, 0, len(locs))
		for _, loc := range locs {
			end := loc[1]
			for end < len(text) && text[end] != '\n' {
				end++
			}
			offsets = append(offsets, []int{end, end})
		}
		return sectionsFromEndOffsets(text, offsets)
	}
	return []string{text}
}

func sectionsFromOffsets(text string, locs [][]int) []string {
	var out []string
	for i, loc := range locs {
		start := loc[0]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		section := text[start:end]
		if trimmed := trimSpaceKeepInner(section); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func sectionsFromEndOffsets(text string, endLocs [][]int) []string {
	var out []string
	start := 0
	for _, loc := range endLocs {
		end := loc[1]
		if end > len(text) {
			end = len(text)
		}
		section := text[start:end]
		if trimmed := trimSpaceKeepInner(section); trimmed != "" {
			out = append(out, trimmed)
		}
		start = end
	}
	if start < len(text) {
		if trimmed := trimSpaceKeepInner(text[start:]); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func trimSpaceKeepInner(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
