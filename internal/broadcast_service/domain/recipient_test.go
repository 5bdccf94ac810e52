package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_Label(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    string
	}{
		{"BareID", Profile{ID: 42}, "42"},
		{"NameOnly", Profile{ID: 42, DisplayName: "Ada Lovelace"}, "42 - Ada Lovelace"},
		{"HandleOnly", Profile{ID: 42, Handle: "ada"}, "42 @ada"},
		{"Both", Profile{ID: 42, DisplayName: " Ada ", Handle: "@ada"}, "42 - Ada @ada"},
		{"WhitespaceParts", Profile{ID: 42, DisplayName: "  ", Handle: " "}, "42"},
		{"HandleKeepsRepeatedAt", Profile{ID: 42, Handle: "@@ada"}, "42 @@ada"},
		{"HandleKeepsInnerAt", Profile{ID: 42, Handle: "ad@a"}, "42 @ad@a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.Label())
		})
	}
}

func TestParseRecipientID(t *testing.T) {
	id, err := ParseRecipientID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, RecipientID(42), id)

	for _, bad := range []string{"", "abc", "-5", "0", "4.2", "+7", "99999999999999999999"} {
		_, err := ParseRecipientID(bad)
		assert.ErrorIs(t, err, ErrInvalidRecipient, bad)
	}
}

func TestOperators(t *testing.T) {
	ops := NewOperators(9, 3)
	assert.True(t, ops.Is(3))
	assert.False(t, ops.Is(4))
	assert.Equal(t, []RecipientID{3, 9}, ops.IDs())
	assert.NoError(t, ops.Authorize(9))
	assert.ErrorIs(t, ops.Authorize(42), ErrNotOperator)
}

func TestOutcome_Reply(t *testing.T) {
	assert.Equal(t, "line A", Outcome{Kind: OutcomeDelivered, Text: "line A"}.Reply())
	assert.Equal(t, "❌ You are not approved.", Outcome{Kind: OutcomeNotAuthorized}.Reply())
	assert.Equal(t, "No text saved yet.", Outcome{Kind: OutcomeNoTextYet}.Reply())
	assert.Equal(t,
		"⚠️ You already received the text for Post #3 (2/2).",
		Outcome{Kind: OutcomeQuotaExceeded, PostID: 3, Cap: 2}.Reply())
	assert.True(t, Outcome{Kind: OutcomeDelivered}.Delivered())
	assert.False(t, Outcome{Kind: OutcomeNoActivePost}.Delivered())
}
