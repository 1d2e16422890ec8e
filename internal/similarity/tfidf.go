package similarity

import (
	"math"
	"sort"
)

// TermWeight is a term with its TF-IDF weight in one document.
type TermWeight struct {
	Term   string
	Weight float64
}

type termCounts struct {
	counts map[string]int
	order  []string // first-occurrence order, used to break weight ties
}

// Corpus is a TF-IDF model over exactly the documents added to it.
// Term frequency is the raw count; idf(t) = 1 + ln(N / (1 + df(t))).
type Corpus struct {
	docs []termCounts
	df   map[string]int
}

func NewCorpus() *Corpus {
	return &Corpus{df: make(map[string]int)}
}

// AddDocument tokenizes text and adds it as the next document.
func (c *Corpus) AddDocument(text string) {
	tc := termCounts{counts: make(map[string]int)}
	for _, tok := range Tokenize(text) {
		if _, seen := tc.counts[tok]; !seen {
			tc.order = append(tc.order, tok)
			c.df[tok]++
		}
		tc.counts[tok]++
	}
	c.docs = append(c.docs, tc)
}

// Len is the number of documents in the corpus.
func (c *Corpus) Len() int {
	return len(c.docs)
}

func (c *Corpus) IDF(term string) float64 {
	return 1 + math.Log(float64(len(c.docs))/float64(1+c.df[term]))
}

// TFIDF is the weight of term in document i.
func (c *Corpus) TFIDF(term string, i int) float64 {
	tf := c.docs[i].counts[term]
	if tf == 0 {
		return 0
	}
	return float64(tf) * c.IDF(term)
}

// TopTerms lists at most n terms of document i by descending weight.
// n <= 0 lists every term.
func (c *Corpus) TopTerms(i, n int) []TermWeight {
	doc := c.docs[i]
	terms := make([]TermWeight, 0, len(doc.order))
	for _, t := range doc.order {
		terms = append(terms, TermWeight{Term: t, Weight: c.TFIDF(t, i)})
	}
	sort.SliceStable(terms, func(a, b int) bool {
		return terms[a].Weight > terms[b].Weight
	})
	if n > 0 && len(terms) > n {
		terms = terms[:n]
	}
	return terms
}
