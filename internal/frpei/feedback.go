package frpei

import "context"

// FeedbackStore persists relevance labels for future rank-weight tuning.
// Tuning itself (adjusting Weights from accumulated feedback) is out of
// scope here; this only captures the signal.
type FeedbackStore interface {
	RecordFeedback(ctx context.Context, fb FeedbackRecord) error
}

// FeedbackRecorder passes feedback records through to a FeedbackStore
// unchanged, kept separate from Orchestrator so the /feedback endpoint
// doesn't need a live provider set to function.
type FeedbackRecorder struct {
	store FeedbackStore
}

func NewFeedbackRecorder(store FeedbackStore) *FeedbackRecorder {
	return &FeedbackRecorder{store: store}
}

func (r *FeedbackRecorder) Record(ctx context.Context, fb FeedbackRecord) error {
	return r.store.RecordFeedback(ctx, fb)
}
