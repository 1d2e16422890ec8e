package similarity

import (
	"math"
	"sort"
	"strings"

	"mindradix-similarity/models"
)

// DefaultMaxTermsPerDoc bounds how many terms each document contributes to the shared vocabulary.
const DefaultMaxTermsPerDoc = 800

// Result is the output of one similarity computation.
type Result struct {
	Docs  []models.Document
	Pairs []models.SimilarityPair
}

// Engine computes pairwise TF-IDF cosine similarity. It holds no state
// between calls and is safe for concurrent use.
type Engine struct {
	MaxTermsPerDoc int
}

func NewEngine(maxTermsPerDoc int) *Engine {
	if maxTermsPerDoc <= 0 {
		maxTermsPerDoc = DefaultMaxTermsPerDoc
	}
	return &Engine{MaxTermsPerDoc: maxTermsPerDoc}
}

// ComputeSimilarities scores every unordered pair (i<j) of docs and returns
// the pairs sorted by descending score. Equal scores keep generation order.
func (e *Engine) ComputeSimilarities(docs []models.Document) Result {
	res := Result{Docs: docs, Pairs: []models.SimilarityPair{}}

	nonEmpty := 0
	for _, d := range docs {
		if strings.TrimSpace(d.Text) != "" {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return res
	}

	vectors := e.Vectorize(docs)
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			res.Pairs = append(res.Pairs, models.SimilarityPair{
				AID:   docs[i].ID,
				BID:   docs[j].ID,
				Score: Round4(Cosine(vectors[i], vectors[j])),
			})
		}
	}

	sort.SliceStable(res.Pairs, func(a, b int) bool {
		return res.Pairs[a].Score > res.Pairs[b].Score
	})
	return res
}

// Vectorize builds one dense vector per document over a vocabulary formed by
// the union of every document's top terms. All vectors share one term index.
func (e *Engine) Vectorize(docs []models.Document) [][]float64 {
	max := e.MaxTermsPerDoc
	if max <= 0 {
		max = DefaultMaxTermsPerDoc
	}

	corpus := NewCorpus()
	for _, d := range docs {
		corpus.AddDocument(d.Text)
	}

	index := make(map[string]int)
	for i := range docs {
		for _, tw := range corpus.TopTerms(i, max) {
			if _, ok := index[tw.Term]; !ok {
				index[tw.Term] = len(index)
			}
		}
	}

	vectors := make([][]float64, len(docs))
	for i := range docs {
		vec := make([]float64, len(index))
		for term, pos := range index {
			vec[pos] = corpus.TFIDF(term, i)
		}
		vectors[i] = vec
	}
	return vectors
}

// Cosine returns dot(a,b) / (|a||b|), or 0 when either vector has zero norm.
func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	for _, v := range a {
		na += v * v
	}
	for _, v := range b {
		nb += v * v
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Floating error can push identical vectors just past 1.
	if sim > 1 {
		return 1
	}
	if sim < 0 {
		return 0
	}
	return sim
}

// Round4 rounds to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
