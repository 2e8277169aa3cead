// Package nostrnorm turns raw Nostr events into indexable documents:
// classification by kind, kind-specific field extraction, and a spam
// gate, before a document ever reaches the metadata store.
package nostrnorm

import "github.com/federails/corequery/internal/relay"

// Category buckets a Nostr kind for downstream document_type tagging.
type Category string

const (
	CategoryNote        Category = "note"
	CategoryLongForm    Category = "long_form"
	CategoryDraft       Category = "draft"
	CategoryClassified  Category = "classified"
	CategoryQA          Category = "qa"
	CategoryPodcast     Category = "podcast"
	CategoryProfile     Category = "profile"
	CategoryContacts    Category = "contacts"
	CategoryMedia       Category = "media"
	CategoryEphemeral   Category = "ephemeral"
	CategoryUnsupported Category = "unsupported"
)

// KindInfo is the static per-kind classification: category, whether the
// kind is ever searchable, and an ingestion priority (1..10, higher is
// more important to keep when a relay truncates results).
type KindInfo struct {
	Category   Category
	Searchable bool
	Priority   int
}

// Extracted is what the Extractor produces for a classified event, the
// shape ToDocument turns into a store.Document.
type Extracted struct {
	Title        string
	Content      string
	Tags         []string
	Metadata     map[string]string
	Mentions     []string // pubkeys referenced via p tags or nostr: mentions
	URLs         []string
	QualityScore float64
	Addressable  string // "kind:pubkey:d", only set when a d tag is present
}

// Result is the outcome of running an event through Classify, Extract,
// and the spam filter.
type Result struct {
	Event     relay.Event
	Info      KindInfo
	Extracted Extracted
	Spam      bool
	SpamFails []string // names of the checks that failed, for diagnostics
	Dropped   bool     // true if the event never reaches the index (unsearchable kind, low priority, or spam)
	DropReason string
}
