package index

import (
	"context"
	"math"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball"
)

// stopWords are filtered before weighting.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "he": true, "in": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "this": true, "to": true, "was": true,
	"will": true, "with": true, "not": true, "but": true, "you": true,
	"your": true, "can": true, "do": true, "does": true, "did": true,
	"should": true, "would": true, "could": true, "my": true, "me": true,
	"if": true, "then": true, "what": true, "which": true, "how": true,
	"all": true, "any": true, "some": true, "so": true, "just": true,
	"been": true, "am": true, "i": true, "we": true, "our": true,
}

// LocalEmbedder is a TF-IDF embedder fit to the indexed corpus.
// It needs no network access and is deterministic.
type LocalEmbedder struct {
	mu    sync.RWMutex
	vocab map[string]int
	idf   []float64
}

// NewLocalEmbedder creates an unfitted LocalEmbedder.
func NewLocalEmbedder() *LocalEmbedder {
	return &LocalEmbedder{vocab: map[string]int{}}
}

// Fit computes the vocabulary and inverse document frequencies for texts.
func (e *LocalEmbedder) Fit(texts []string) {
	vocab := make(map[string]int)
	docFreqs := make([]int, 0)

	for _, text := range texts {
		seen := make(map[string]bool)
		for _, term := range tokenize(text) {
			idx, ok := vocab[term]
			if !ok {
				idx = len(docFreqs)
				vocab[term] = idx
				docFreqs = append(docFreqs, 0)
			}
			if !seen[term] {
				seen[term] = true
				docFreqs[idx]++
			}
		}
	}

	n := float64(len(texts))
	idf := make([]float64, len(docFreqs))
	for i, df := range docFreqs {
		// Smoothed idf keeps terms present in every document above zero.
		idf[i] = math.Log((n+1)/(float64(df)+1)) + 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.vocab = vocab
	e.idf = idf
}

// Embed returns TF-IDF vectors. Terms outside the fitted vocabulary are ignored.
func (e *LocalEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec := make([]float64, len(e.idf))
		for _, term := range tokenize(text) {
			if idx, ok := e.vocab[term]; ok {
				vec[idx]++
			}
		}
		for idx := range vec {
			if vec[idx] > 0 {
				vec[idx] = (1 + math.Log(vec[idx])) * e.idf[idx]
			}
		}
		out[i] = vec
	}
	return out, nil
}

// tokenize splits text into lowercase stemmed terms without stop words.
func tokenize(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		lower := strings.ToLower(word)
		if utf8.RuneCountInString(lower) < 2 || stopWords[lower] {
			continue
		}
		tokens = append(tokens, stem(lower))
	}
	return tokens
}

// stem reduces w with the snowball stemmer for its script so "postponing"
// and "postponed" meet. Words the stemmer rejects are kept as is.
func stem(w string) string {
	stemmed, err := snowball.Stem(w, stemLanguage(w), true)
	if err != nil || stemmed == "" {
		return w
	}
	return stemmed
}

// stemLanguage picks the snowball language from the word's script.
func stemLanguage(w string) string {
	for _, r := range w {
		if unicode.Is(unicode.Cyrillic, r) {
			return "russian"
		}
	}
	return "english"
}
