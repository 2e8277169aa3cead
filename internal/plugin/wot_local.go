package plugin

import (
	"context"

	"github.com/federails/corequery/internal/relay"
)

const (
	kindContactList = 3

	hopScoreDirect    = 1.0
	hopScoreSecond    = 0.5
	hopScoreThird     = 0.25
	hopScoreUnreached = 0.1

	maxFollowHops = 3
)

// FollowGraph is an in-memory adjacency list of who-follows-whom, built
// from kind-3 contact list events. It never refreshes itself; callers
// rebuild it from a fresh relay query on whatever cadence they choose.
type FollowGraph struct {
	follows map[string]map[string]struct{}
}

// NewFollowGraph builds a graph from contact list events, keeping only
// the newest event seen per author (a later kind-3 event fully replaces
// an author's prior follow list, per NIP-02).
func NewFollowGraph(events []relay.Event) *FollowGraph {
	g := &FollowGraph{follows: make(map[string]map[string]struct{})}
	latest := make(map[string]relay.Event)
	for _, ev := range events {
		if ev.Kind != kindContactList {
			continue
		}
		if prev, ok := latest[ev.PubKey]; !ok || ev.CreatedAt.After(prev.CreatedAt) {
			latest[ev.PubKey] = ev
		}
	}
	for pubkey, ev := range latest {
		followed := make(map[string]struct{})
		for _, tag := range ev.Tags {
			if len(tag) >= 2 && tag[0] == "p" && tag[1] != "" {
				followed[tag[1]] = struct{}{}
			}
		}
		g.follows[pubkey] = followed
	}
	return g
}

// hopDistance runs a breadth-first search outward from viewer up to
// maxFollowHops, returning the fewest hops to reach target, or -1 if
// unreached within that radius.
func (g *FollowGraph) hopDistance(viewer, target string) int {
	if viewer == target {
		return 0
	}
	visited := map[string]struct{}{viewer: {}}
	frontier := []string{viewer}
	for hop := 1; hop <= maxFollowHops; hop++ {
		var next []string
		for _, node := range frontier {
			for followed := range g.follows[node] {
				if followed == target {
					return hop
				}
				if _, seen := visited[followed]; seen {
					continue
				}
				visited[followed] = struct{}{}
				next = append(next, followed)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return -1
}

// scoreForHops converts a hop count into spec.md §4.9's decay curve.
func scoreForHops(hops int) float64 {
	switch hops {
	case 0, 1:
		return hopScoreDirect
	case 2:
		return hopScoreSecond
	case 3:
		return hopScoreThird
	default:
		return hopScoreUnreached
	}
}

// LocalWoTProvider computes trust scores by BFS distance over a
// pre-built FollowGraph, with no network calls.
type LocalWoTProvider struct {
	graph *FollowGraph
}

// NewLocalWoTProvider wraps a graph snapshot. Callers swap the graph
// (via a fresh NewLocalWoTProvider) when they want to pick up new
// contact-list events rather than mutating it in place.
func NewLocalWoTProvider(graph *FollowGraph) *LocalWoTProvider {
	return &LocalWoTProvider{graph: graph}
}

func (p *LocalWoTProvider) GetScore(_ context.Context, viewer, target string) (float64, error) {
	return scoreForHops(p.graph.hopDistance(viewer, target)), nil
}

func (p *LocalWoTProvider) BatchGetScores(_ context.Context, viewer string, targets []string) (map[string]float64, error) {
	out := make(map[string]float64, len(targets))
	for _, t := range targets {
		out[t] = scoreForHops(p.graph.hopDistance(viewer, t))
	}
	return out, nil
}
