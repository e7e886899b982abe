package extract

import (
	"regexp"
	"strconv"
)

var (
	lpaRangePattern   = regexp.MustCompile(`(?i)(\d{1,2}(?:\.\d+)?)\s*-\s*(\d{1,2}(?:\.\d+)?)\s*lpa`)
	lpaSinglePattern  = regexp.MustCompile(`(?i)(\d{1,2}(?:\.\d+)?)\s*lpa`)
	lpaUptoPattern    = regexp.MustCompile(`(?i)upto\s*(\d{1,2}(?:\.\d+)?)\s*lpa`)
	monthlyKRangePattern = regexp.MustCompile(`(?i)(\d{1,3})\s*-\s*(\d{1,3})\s*k\b`)
	monthlyKSinglePattern = regexp.MustCompile(`(?i)\b(\d{1,3})\s*k\b(?:\s*(?:per\s*month|/month|pm))?`)
	rupeeRangePattern = regexp.MustCompile(`(?i)(?:rs\.?|inr|₹)\s*(\d{4,6})\s*-\s*(\d{4,6})`)
	rupeeSinglePattern = regexp.MustCompile(`(?i)(?:rs\.?|inr|₹)\s*(\d{4,6})`)
)

// extractSalary tries the salary patterns in precedence order (LPA range,
// single LPA, upto-LPA, monthly-k range, single monthly-k, rupee range,
// single rupee), returning a monthly INR integer or nil if no recognizable
// salary expression is present (or the matched value fails its validity
// bounds).
func extractSalary(section string) *int {
	if m := lpaRangePattern.FindStringSubmatch(section); m != nil {
		lo := lpaToMonthly(parseFloat(m[1]))
		hi := lpaToMonthly(parseFloat(m[2]))
		avg := (lo + hi) / 2
		return &avg
	}
	if m := lpaSinglePattern.FindStringSubmatch(section); m != nil {
		v := lpaToMonthly(parseFloat(m[1]))
		return &v
	}
	if m := lpaUptoPattern.FindStringSubmatch(section); m != nil {
		v := lpaToMonthly(parseFloat(m[1]))
		return &v
	}
	if m := monthlyKRangePattern.FindStringSubmatch(section); m != nil {
		lo, loOK := validKRange(parseInt(m[1]))
		hi, hiOK := validKRange(parseInt(m[2]))
		if loOK && hiOK {
			avg := (lo + hi) / 2
			return &avg
		}
	}
	if m := monthlyKSinglePattern.FindStringSubmatch(section); m != nil {
		if v, ok := validKSingle(parseInt(m[1])); ok {
			return &v
		}
	}
	if m := rupeeRangePattern.FindStringSubmatch(section); m != nil {
		lo, loOK := validRupee(parseInt(m[1]))
		hi, hiOK := validRupee(parseInt(m[2]))
		if loOK && hiOK {
			avg := (lo + hi) / 2
			return &avg
		}
	}
	if m := rupeeSinglePattern.FindStringSubmatch(section); m != nil {
		if v, ok := validRupee(parseInt(m[1])); ok {
			return &v
		}
	}
	return nil
}

func lpaToMonthly(lpa float64) int {
	annual := lpa * 100000
	return int(annual / 12)
}

// validKRange bounds one endpoint of a "N-Mk" range. Only the upper bound
// applies: a range like "3-10k" is legitimate even though a bare "3k" would
// be too ambiguous to trust.
func validKRange(k int) (int, bool) {
	if k > 99 {
		return 0, false
	}
	return k * 1000, true
}

// validKSingle bounds a standalone "Nk" value, where small numbers are more
// often list indices or years than salaries.
func validKSingle(k int) (int, bool) {
	if k < 5 || k > 99 {
		return 0, false
	}
	return k * 1000, true
}

func validRupee(r int) (int, bool) {
	if r < 10000 || r > 199999 {
		return 0, false
	}
	return r, true
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
