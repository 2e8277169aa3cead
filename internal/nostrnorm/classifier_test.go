package nostrnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_KnownKinds(t *testing.T) {
	tests := []struct {
		name     string
		kind     int
		wantCat  Category
		wantIdx  bool
	}{
		{"short note", 1, CategoryNote, true},
		{"long-form article", 30023, CategoryLongForm, true},
		{"draft", 30024, CategoryDraft, true},
		{"classified listing", 30402, CategoryClassified, true},
		{"profile metadata", 0, CategoryProfile, true},
		{"contact list", 3, CategoryContacts, true},
		{"ephemeral", 24242, CategoryEphemeral, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Classify(tt.kind)
			assert.Equal(t, tt.wantCat, info.Category)
			assert.Equal(t, tt.wantIdx, info.ShouldIndex())
		})
	}
}

func TestClassify_UnknownKindIsUnsupported(t *testing.T) {
	info := Classify(99999)
	assert.Equal(t, CategoryUnsupported, info.Category)
	assert.False(t, info.Searchable)
	assert.False(t, info.ShouldIndex())
}

func TestShouldIndex_DropsLowPriority(t *testing.T) {
	info := KindInfo{Category: CategoryEphemeral, Searchable: true, Priority: 1}
	assert.False(t, info.ShouldIndex())
}
