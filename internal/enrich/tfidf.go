package enrich

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9_'-]{1,}`)

func tokenize(text string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !stopWords[m] && len(m) > 1 {
			out = append(out, m)
		}
	}
	return out
}

// stopWords is a small common-English stopword set; TF-IDF and RAKE both
// use it to discard low-information tokens before scoring.
var stopWords = buildStopWords()

func buildStopWords() map[string]bool {
	words := strings.Fields(`a an the and or but if then else for of to in on at by with from as is are was were
		be been being have has had do does did will would could should may might must can this that these those
		it its it's he she they them his her their our your you we i not no so than too very just about into
		over under again further here there when where why how all any both each few more most other some such
		only own same s t don now`)
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}

// CorpusDocument is the minimal (id, text) pair the IDF index trains on.
type CorpusDocument struct {
	ID      string
	Content string
}

// Corpus supplies the document set IDFIndex refreshes itself against.
type Corpus interface {
	AllDocuments(ctx context.Context) ([]CorpusDocument, error)
}

// IDFIndex tracks document frequency per term across the corpus, refreshed
// lazily (on demand, not per-document) per spec.md §4.6.
type IDFIndex struct {
	mu        sync.RWMutex
	docFreq   map[string]int
	totalDocs int
}

// NewIDFIndex creates an empty index; call Refresh before first use.
func NewIDFIndex() *IDFIndex {
	return &IDFIndex{docFreq: make(map[string]int)}
}

// Refresh rebuilds document frequencies from the full corpus. Callers
// trigger this periodically (e.g. every N upserts or on a timer), not on
// every single document, since it scans the whole corpus.
func (idx *IDFIndex) Refresh(ctx context.Context, corpus Corpus) error {
	docs, err := corpus.AllDocuments(ctx)
	if err != nil {
		return err
	}

	freq := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, tok := range tokenize(doc.Content) {
			if !seen[tok] {
				seen[tok] = true
				freq[tok]++
			}
		}
	}

	idx.mu.Lock()
	idx.docFreq = freq
	idx.totalDocs = len(docs)
	idx.mu.Unlock()
	return nil
}

// idf returns the inverse document frequency for a term, smoothed to stay
// finite and positive when the term is unseen in the trained corpus.
func (idx *IDFIndex) idf(term string) float64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	total := idx.totalDocs + 1
	df := idx.docFreq[term] + 1
	return math.Log(float64(total) / float64(df))
}

// TFIDFTagger selects the top-scoring terms in a document as tags.
type TFIDFTagger struct {
	idf  *IDFIndex
	topN int
}

// NewTFIDFTagger creates a tagger returning up to topN tags per document.
func NewTFIDFTagger(idx *IDFIndex, topN int) *TFIDFTagger {
	if topN <= 0 {
		topN = 8
	}
	return &TFIDFTagger{idf: idx, topN: topN}
}

type scoredTerm struct {
	term  string
	score float64
}

// Tag scores every distinct token in content by tf*idf and returns the
// highest-scoring topN as tags.
func (t *TFIDFTagger) Tag(content string) []string {
	tokens := tokenize(content)
	if len(tokens) == 0 {
		return nil
	}

	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}

	scored := make([]scoredTerm, 0, len(tf))
	for term, count := range tf {
		score := (float64(count) / float64(len(tokens))) * t.idf.idf(term)
		scored = append(scored, scoredTerm{term, score})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].term < scored[j].term
	})

	n := t.topN
	if n > len(scored) {
		n = len(scored)
	}
	tags := make([]string, n)
	for i := 0; i < n; i++ {
		tags[i] = scored[i].term
	}
	return tags
}
