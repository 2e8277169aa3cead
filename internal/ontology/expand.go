package ontology

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/federails/corequery/internal/search"
	"github.com/federails/corequery/internal/store"
)

var (
	_ search.TriggerApplier = (*Expander)(nil)
	_ search.QueryExpander  = (*Expander)(nil)
)

const (
	aliasWeight    = 1.0
	broaderWeight  = 0.5
	narrowerWeight = 0.7
	relatedWeight  = 0.6
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9][a-zA-Z0-9'_-]*`)

var stopWords = buildStopWords()

func buildStopWords() map[string]bool {
	words := strings.Fields("a an the of and or to in on for with is are was were by at from")
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}

func tokenize(text string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !stopWords[m] {
			out = append(out, m)
		}
	}
	return out
}

// Expander holds a loaded Snapshot in memory and answers Expand/Apply
// calls against it without touching disk or network, per spec.md §4.7's
// determinism requirement.
type Expander struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewExpander wraps an already-loaded snapshot (nil is valid — Expand
// degrades to identity expansion and Apply becomes a no-op).
func NewExpander(snap *Snapshot) *Expander {
	if snap == nil {
		snap = &Snapshot{Concepts: map[string]*Concept{}, TermIndex: map[string]string{}}
	}
	return &Expander{snap: snap}
}

// Reload swaps in a freshly loaded snapshot, letting a scheduler-driven
// refresh rotate state without restarting the process.
func (e *Expander) Reload(snap *Snapshot) {
	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()
}

// Expand tokenizes query_text, case-folds and strips stopwords, then for
// each remaining token looks up aliases/acronyms and broader/narrower/
// related concepts up to depth 1, producing the DNF-shaped QueryPlan
// spec.md §4.7 describes. Deterministic given the current snapshot.
func (e *Expander) Expand(ctx context.Context, queryText string) QueryPlan {
	e.mu.RLock()
	snap := e.snap
	e.mu.RUnlock()

	plan := QueryPlan{DocTypeBoost: map[string]float64{}}

	for _, tok := range tokenize(queryText) {
		group := TermGroup{OriginalTerm: tok, Terms: []WeightedTerm{{Term: tok, Weight: 1.0}}}

		if conceptID, ok := snap.TermIndex[tok]; ok {
			group.Terms = append(group.Terms, expandConcept(snap, conceptID, aliasWeight)...)
		}
		plan.Groups = append(plan.Groups, dedupeGroup(group))
	}

	for _, trig := range triggersByPriority(snap) {
		if triggerMatches(trig, queryText) {
			for docType, boost := range trig.DocTypeBoost {
				plan.DocTypeBoost[docType] += boost
			}
			plan.TermInjections = append(plan.TermInjections, trig.TermInjections...)
		}
	}

	return plan
}

// ExpandTerms implements search.QueryExpander: the flattened expansion
// terms beyond the query's own tokens, plus any trigger term injections.
// An empty snapshot yields nil, so expansion degrades to identity.
func (e *Expander) ExpandTerms(ctx context.Context, queryText string) []string {
	plan := e.Expand(ctx, queryText)

	seen := make(map[string]bool)
	var out []string
	for _, g := range plan.Groups {
		for _, wt := range g.Terms {
			if wt.Term == g.OriginalTerm || seen[wt.Term] {
				continue
			}
			seen[wt.Term] = true
			out = append(out, wt.Term)
		}
	}
	for _, term := range plan.TermInjections {
		if !seen[term] {
			seen[term] = true
			out = append(out, term)
		}
	}
	return out
}

func expandConcept(snap *Snapshot, conceptID string, baseWeight float64) []WeightedTerm {
	concept, ok := snap.Concepts[conceptID]
	if !ok {
		return nil
	}

	out := []WeightedTerm{{Term: concept.Term, Weight: baseWeight * aliasWeight}}
	for _, alias := range concept.Aliases {
		out = append(out, WeightedTerm{Term: alias, Weight: baseWeight * aliasWeight})
	}
	for _, id := range concept.Broader {
		if c, ok := snap.Concepts[id]; ok {
			out = append(out, WeightedTerm{Term: c.Term, Weight: baseWeight * broaderWeight})
		}
	}
	for _, id := range concept.Narrower {
		if c, ok := snap.Concepts[id]; ok {
			out = append(out, WeightedTerm{Term: c.Term, Weight: baseWeight * narrowerWeight})
		}
	}
	for _, id := range concept.Related {
		if c, ok := snap.Concepts[id]; ok {
			out = append(out, WeightedTerm{Term: c.Term, Weight: baseWeight * relatedWeight})
		}
	}
	return out
}

func dedupeGroup(group TermGroup) TermGroup {
	seen := make(map[string]float64, len(group.Terms))
	var order []string
	for _, t := range group.Terms {
		if existing, ok := seen[t.Term]; !ok || t.Weight > existing {
			if !ok {
				order = append(order, t.Term)
			}
			seen[t.Term] = t.Weight
		}
	}
	out := make([]WeightedTerm, len(order))
	for i, term := range order {
		out[i] = WeightedTerm{Term: term, Weight: seen[term]}
	}
	group.Terms = out
	return group
}

func triggerMatches(trig *Trigger, queryText string) bool {
	if !trig.Enabled {
		return false
	}
	if trig.re != nil && trig.re.MatchString(queryText) {
		return true
	}
	lower := strings.ToLower(queryText)
	for _, kw := range trig.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// triggersByPriority returns the snapshot's triggers in descending
// Priority order, ties kept in insertion order.
func triggersByPriority(snap *Snapshot) []*Trigger {
	out := make([]*Trigger, len(snap.Triggers))
	copy(out, snap.Triggers)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// Apply implements search.TriggerApplier: it reruns trigger matching for
// the query and, when a matched trigger's DocTypeBoost names doc's
// document type, adds that boost to score.
func (e *Expander) Apply(ctx context.Context, query string, doc *store.Document, score float64) (adjusted, boost float64) {
	e.mu.RLock()
	snap := e.snap
	e.mu.RUnlock()

	for _, trig := range snap.Triggers {
		if !triggerMatches(trig, query) {
			continue
		}
		if doc != nil {
			if b, ok := trig.DocTypeBoost[doc.DocumentType]; ok {
				boost += b
			}
		}
	}
	return score + boost, boost
}

// Snapshot returns the currently loaded snapshot, for the admin API's
// read endpoints. Callers must not mutate the returned value directly;
// use the Put/Delete methods below instead.
func (e *Expander) Snapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

// PutConcept inserts or replaces a dictionary concept and rebuilds the
// derived term index so subsequent Expand calls see it immediately.
func (e *Expander) PutConcept(c *Concept) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap.Concepts[c.ID] = c
	buildTermIndex(e.snap)
}

// DeleteConcept removes a concept by ID, if present.
func (e *Expander) DeleteConcept(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.snap.Concepts, id)
	buildTermIndex(e.snap)
}

// PutTrigger inserts or replaces a trigger by ID.
func (e *Expander) PutTrigger(t *Trigger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t.compile()
	for i, existing := range e.snap.Triggers {
		if existing.ID == t.ID {
			e.snap.Triggers[i] = t
			return
		}
	}
	e.snap.Triggers = append(e.snap.Triggers, t)
}

// DeleteTrigger removes a trigger by ID, if present.
func (e *Expander) DeleteTrigger(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, existing := range e.snap.Triggers {
		if existing.ID == id {
			e.snap.Triggers = append(e.snap.Triggers[:i], e.snap.Triggers[i+1:]...)
			return
		}
	}
}
