package nostrnorm

// registry maps Nostr event kind to its classification. Kinds absent from
// the map are treated as CategoryUnsupported, searchable=false.
//
// Priority bands per kind family: notes 10, long-form 9, drafts 8,
// classifieds/Q&A/podcast 6-7, profiles/contacts/media 4-5, ephemeral 1.
var registry = map[int]KindInfo{
	1:     {Category: CategoryNote, Searchable: true, Priority: 10},
	30023: {Category: CategoryLongForm, Searchable: true, Priority: 9},
	30024: {Category: CategoryDraft, Searchable: true, Priority: 8},
	30402: {Category: CategoryClassified, Searchable: true, Priority: 7},
	1311:  {Category: CategoryQA, Searchable: true, Priority: 6},
	30311: {Category: CategoryPodcast, Searchable: true, Priority: 7},
	54:    {Category: CategoryPodcast, Searchable: true, Priority: 6},
	0:      {Category: CategoryProfile, Searchable: true, Priority: 5},
	3:      {Category: CategoryContacts, Searchable: true, Priority: 4},
	1063:   {Category: CategoryMedia, Searchable: true, Priority: 4},
	20:     {Category: CategoryMedia, Searchable: true, Priority: 5},
	21:     {Category: CategoryMedia, Searchable: true, Priority: 5},
	22:     {Category: CategoryMedia, Searchable: true, Priority: 5},
	24242:  {Category: CategoryEphemeral, Searchable: false, Priority: 1},
}

// Classify looks up a kind's static classification. Unknown kinds report
// CategoryUnsupported and are never searchable.
func Classify(kind int) KindInfo {
	if info, ok := registry[kind]; ok {
		return info
	}
	return KindInfo{Category: CategoryUnsupported, Searchable: false, Priority: 0}
}

// minSearchablePriority is the cutoff below which a searchable kind is
// still dropped; events below this are considered too low-value to index.
const minSearchablePriority = 3

// ShouldIndex reports whether an event's classification clears the
// searchable and priority gates.
func (k KindInfo) ShouldIndex() bool {
	return k.Searchable && k.Priority >= minSearchablePriority
}
