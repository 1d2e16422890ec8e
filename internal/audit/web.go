package audit

import "strings"

// WebInput is what a web estimator sees of an audited text.
type WebInput struct {
	Text        string // lower-cased
	WordCount   int
	UniqueWords int
	AIScore     int
}

// WebEstimator produces a web-overlap percentage and source labels.
type WebEstimator interface {
	Estimate(in WebInput) (score int, sources []string)
}

// Canned labels reported by SimulatedWebEstimator.
var (
	PlaceholderSources = []string{"Lorem Ipsum Generator (lipsum.com)", "Standard placeholder text"}
	SimulatedSources   = []string{"Wikipedia (Partial Match)", "Public web content (similar phrasing)"}
)

// SimulatedWebEstimator is a deterministic stand-in for a real plagiarism
// database. The score derives from word counts only; it never searches.
type SimulatedWebEstimator struct{}

func (SimulatedWebEstimator) Estimate(in WebInput) (int, []string) {
	for _, marker := range placeholderMarkers {
		if strings.Contains(in.Text, marker) {
			return 100, append([]string(nil), PlaceholderSources...)
		}
	}

	seed := (in.WordCount + in.UniqueWords) % 40
	score := seed
	// Generated text rarely matches existing pages verbatim.
	if in.AIScore > 80 {
		score = 5 + seed%10
	}

	if score > 10 {
		return score, append([]string(nil), SimulatedSources...)
	}
	return score, []string{}
}
