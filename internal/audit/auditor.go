package audit

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"mindradix-similarity/models"
)

const (
	// MinTextLength is the shortest text the heuristics run on.
	MinTextLength = 50
	// MaxAIScore keeps the auditor from ever claiming certainty.
	MaxAIScore = 99

	phraseWeight    = 15
	phraseCap       = 60
	minSentences    = 5
	minWordsForTTR  = 50
	maxWordsForTTR  = 500
	lowTypeTokenCut = 0.45
)

const (
	DetailTooShort      = "Text too short for analysis"
	DetailUniform       = "Sentence lengths are highly uniform"
	DetailLowVariation  = "Sentence lengths show limited variation"
	DetailLowDiversity  = "Low vocabulary diversity"
	DetailLikelyHuman   = "Text appears likely human-written"
	DetailLikelyMachine = "High probability of AI generation"
)

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?]+`)
	wordRe          = regexp.MustCompile(`[\p{L}\p{N}']+`)
)

// Auditor scores text for machine-generated phrasing and estimates web overlap.
// It performs no I/O unless its WebEstimator does.
type Auditor struct {
	web WebEstimator
}

// New creates an auditor. A nil estimator selects SimulatedWebEstimator.
func New(web WebEstimator) *Auditor {
	if web == nil {
		web = SimulatedWebEstimator{}
	}
	return &Auditor{web: web}
}

// AuditText runs every heuristic over text.
func (a *Auditor) AuditText(text string) models.HeuristicAuditResult {
	if len([]rune(text)) < MinTextLength {
		return models.HeuristicAuditResult{
			AIScore:    0,
			AIDetails:  []string{DetailTooShort},
			WebScore:   0,
			WebSources: []string{},
		}
	}

	lower := strings.ToLower(text)
	score := 0
	details := []string{}

	if hits := countPhraseHits(lower); hits > 0 {
		score += min(phraseCap, hits*phraseWeight)
		details = append(details, fmt.Sprintf("Found %d common AI phrases", hits))
	}

	if lengths := sentenceLengths(text); len(lengths) > minSentences {
		cv := coefficientOfVariation(lengths)
		switch {
		case cv < 0.35:
			score += 50
			details = append(details, fmt.Sprintf("%s (variation %.2f)", DetailUniform, cv))
		case cv < 0.45:
			score += 30
			details = append(details, fmt.Sprintf("%s (variation %.2f)", DetailLowVariation, cv))
		}
	}

	words := wordRe.FindAllString(lower, -1)
	unique := countUnique(words)
	if len(words) > minWordsForTTR {
		ttr := float64(unique) / float64(len(words))
		if ttr < lowTypeTokenCut && len(words) < maxWordsForTTR {
			score += 20
			details = append(details, DetailLowDiversity)
		}
	}

	score = clamp(score, 0, MaxAIScore)
	switch {
	case score < 20:
		details = append(details, DetailLikelyHuman)
	case score > 60:
		details = append(details, DetailLikelyMachine)
	}

	webScore, sources := a.web.Estimate(WebInput{
		Text:        lower,
		WordCount:   len(words),
		UniqueWords: unique,
		AIScore:     score,
	})
	if sources == nil {
		sources = []string{}
	}

	return models.HeuristicAuditResult{
		AIScore:    score,
		AIDetails:  details,
		WebScore:   clamp(webScore, 0, 100),
		WebSources: sources,
	}
}

func countPhraseHits(lower string) int {
	hits := 0
	for _, p := range aiPhrases {
		if strings.Contains(lower, p) {
			hits++
		}
	}
	return hits
}

// sentenceLengths returns the word count of every non-empty sentence.
func sentenceLengths(text string) []float64 {
	var lengths []float64
	for _, s := range sentenceSplitRe.Split(text, -1) {
		if n := len(strings.Fields(s)); n > 0 {
			lengths = append(lengths, float64(n))
		}
	}
	return lengths
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func coefficientOfVariation(values []float64) float64 {
	mean, std := meanStd(values)
	if mean == 0 {
		return 0
	}
	return std / mean
}

func countUnique(words []string) int {
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}
	return len(seen)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
