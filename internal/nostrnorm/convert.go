package nostrnorm

import (
	"strconv"

	"github.com/federails/corequery/internal/store"
)

// documentTypes maps a category to the taxonomy tag recorded on the
// resulting Document.
var documentTypes = map[Category]string{
	CategoryNote:       "nostr:note",
	CategoryLongForm:   "nostr:article",
	CategoryDraft:      "nostr:draft",
	CategoryClassified: "nostr:classified",
	CategoryQA:         "nostr:qa",
	CategoryPodcast:    "nostr:podcast",
	CategoryProfile:    "nostr:profile",
	CategoryContacts:   "nostr:contacts",
	CategoryMedia:      "nostr:media",
}

// ToDocument converts a non-dropped Result into a store.Document. Callers
// should check Result.Dropped first; ToDocument does not re-check it.
func ToDocument(r Result, sourceID string) *store.Document {
	docType, ok := documentTypes[r.Info.Category]
	if !ok {
		docType = "nostr:unknown"
	}

	attrs := map[string]string{
		"event_id": r.Event.ID,
		"pubkey":   r.Event.PubKey,
		"kind":     strconv.Itoa(r.Event.Kind),
	}
	if r.Extracted.Addressable != "" {
		attrs["addressable"] = r.Extracted.Addressable
	}
	for k, v := range r.Extracted.Metadata {
		attrs[k] = v
	}

	return &store.Document{
		SourceID:     sourceID,
		ExternalID:   r.Event.ID,
		Title:        r.Extracted.Title,
		Content:      r.Extracted.Content,
		DocumentType: docType,
		CreatedAt:    r.Event.CreatedAt,
		LastModified: r.Event.CreatedAt,
		Attributes:   attrs,
		QualityScore: r.Extracted.QualityScore,
		Tags:         r.Extracted.Tags,
	}
}
