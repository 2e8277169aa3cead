// Package enrich derives tags, entities, and content metadata from an
// indexed document, running asynchronously after upsert or in batch.
package enrich

// EntityType is one of the eight recognized entity categories.
type EntityType string

const (
	EntityPerson   EntityType = "PERSON"
	EntityOrg      EntityType = "ORG"
	EntityLocation EntityType = "LOCATION"
	EntityDate     EntityType = "DATE"
	EntityMoney    EntityType = "MONEY"
	EntityEmail    EntityType = "EMAIL"
	EntityPhone    EntityType = "PHONE"
	EntityURL      EntityType = "URL"
)

// Entity is one recognized mention within a document's content.
type Entity struct {
	Type       EntityType
	Value      string // as it appeared in the text
	Normalized string // lowercased/canonicalized form used for relationship keys
	Span       [2]int // byte offsets [start, end) into content
}

// Sentiment is the polarity classification of a document's content.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Metadata holds the document-level features enrichment derives beyond
// tags/entities.
type Metadata struct {
	ReadingTimeSeconds int
	WordCount          int
	Sentiment          Sentiment
	SentimentScore     float64 // confidence in [0,1]
	HasCode            bool
	HasTable           bool
	HasList            bool
	Author             string
	Language           string
}
