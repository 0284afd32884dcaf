package validator

import (
	"errors"
	"strings"
	"testing"

	prolink_errors "prolink-chat/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSingleEmoji(t *testing.T) {
	valid := []string{"👍", "❤️", "©️", "👍🏽", "👨‍👩‍👧", "🧑🏽‍💻", "🇰🇪", "1️⃣", "#⃣", "🏴󠁧󠁢󠁳󠁣󠁴󠁿", "🔥", "⌛"}
	for _, s := range valid {
		assert.True(t, IsSingleEmoji(s), "expected %q to be accepted", s)
	}

	invalid := []string{
		"", "a", "ok", "中", "Ａ", "!", "©", "👍👍", "👍 ", " 👍", "🇰", "🇰🇪🇰", "👍‍", "🏽",
		"1", "1⃣x", "e\u0301", strings.Repeat("👍‍", 20) + "👍",
	}
	for _, s := range invalid {
		assert.False(t, IsSingleEmoji(s), "expected %q to be rejected", s)
	}
}

type sample struct {
	Content string `json:"content" validate:"required,min=1,max=5000"`
	Emoji   string `json:"emoji" validate:"omitempty,emoji"`
}

func TestValidateUsesJSONNames(t *testing.T) {
	v := New()

	err := v.Validate(sample{Content: "", Emoji: "x"})
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Errors, "content")
	assert.Equal(t, "must be a single emoji", verr.Errors["emoji"])
	assert.True(t, errors.Is(err, prolink_errors.ErrInvalidInput))
}

func TestValidateContentBoundaries(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(sample{Content: strings.Repeat("é", 5000)}))
	assert.Error(t, v.Validate(sample{Content: strings.Repeat("é", 5001)}))
}

func TestVar(t *testing.T) {
	v := New()
	assert.NoError(t, v.Var("emoji", "🎉", "required,emoji"))

	err := v.Var("emoji", "nope", "required,emoji")
	require.Error(t, err)
	assert.EqualError(t, err, "validation failed: emoji: must be a single emoji")
}
