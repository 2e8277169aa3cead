package nostrnorm

import (
	"github.com/federails/corequery/internal/relay"
)

// Pipeline runs an event through classification, extraction, and the
// spam gate, in that order, short-circuiting as soon as an event is
// dropped. One Pipeline should be reused across a connector run so its
// SpamFilter retains duplicate-content memory.
type Pipeline struct {
	spam *SpamFilter
}

// NewPipeline creates a Pipeline with the given spam filter config.
func NewPipeline(cfg SpamFilterConfig) *Pipeline {
	return &Pipeline{spam: NewSpamFilter(cfg)}
}

// Process classifies, extracts, and spam-checks ev, returning a Result
// that records why an event was dropped when it was.
func (p *Pipeline) Process(ev relay.Event) Result {
	info := Classify(ev.Kind)
	if !info.ShouldIndex() {
		return Result{Event: ev, Info: info, Dropped: true, DropReason: "unsearchable_or_low_priority"}
	}

	extracted := Extract(ev, info)

	spam, failed := p.spam.Check(ev, extracted)
	result := Result{
		Event:     ev,
		Info:      info,
		Extracted: extracted,
		Spam:      spam,
		SpamFails: failed,
	}
	if spam {
		result.Dropped = true
		result.DropReason = "spam"
	}
	return result
}
