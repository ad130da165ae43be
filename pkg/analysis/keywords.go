package analysis

import (
	"sort"
	"strings"

	"github.com/gabrielabsi/cvx-backend/pkg/nlp"
)

// maxKeywords caps how many job-description terms the deterministic pass
// scores against the resume.
const maxKeywords = 25

// stopwords covers the filler vocabulary of job postings in Portuguese
// and English; anything here never counts as a keyword.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(
		"a o e de da do das dos em um uma com para por que se na no nas nos " +
			"como mais ser ter sua seu suas seus ou ao aos à às nosso nossa vaga " +
			"the and for with from that this will are our you your have has was " +
			"were can may not but all any who work team job role we is in of on " +
			"to as at be an or it its they them their") {
		stopwords[w] = struct{}{}
	}
}

// ExtractKeywords pulls the most frequent meaningful terms out of a job
// description, in descending frequency order. Terms shorter than three
// characters and stopwords are skipped.
func ExtractKeywords(jobDescription string) []string {
	normalized := nlp.Normalize(jobDescription)
	if normalized == "" {
		return nil
	}
	freq := make(map[string]int)
	var order []string
	for _, t := range strings.Split(normalized, " ") {
		if len([]rune(t)) < 3 {
			continue
		}
		if _, skip := stopwords[t]; skip {
			continue
		}
		if freq[t] == 0 {
			order = append(order, t)
		}
		freq[t]++
	}
	// Stable ordering: by frequency, first occurrence breaking ties.
	pos := make(map[string]int, len(order))
	for i, t := range order {
		pos[t] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		if freq[order[i]] != freq[order[j]] {
			return freq[order[i]] > freq[order[j]]
		}
		return pos[order[i]] < pos[order[j]]
	})
	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}

// matchKeywords splits keywords into those present in the resume and
// those missing, matching on whole normalized words.
func matchKeywords(keywords []string, resumeText string) (matched, missing []string) {
	normalizedResume := nlp.Normalize(resumeText)
	for _, kw := range keywords {
		if nlp.ContainsPhrase(normalizedResume, kw) {
			matched = append(matched, kw)
		} else {
			missing = append(missing, kw)
		}
	}
	return matched, missing
}
