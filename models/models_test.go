package models

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePreviewText_ShortTextPassesThrough(t *testing.T) {
	assert.Equal(t, "I had a rough day", DerivePreviewText("I had a rough day"))
}

func TestDerivePreviewText_TrimsWhitespace(t *testing.T) {
	assert.Equal(t, "I had a rough day", DerivePreviewText("  I had a rough day  \n"))
}

func TestDerivePreviewText_TruncatesWithEllipsis(t *testing.T) {
	long := strings.Repeat("a", 150)
	preview := DerivePreviewText(long)

	assert.Equal(t, 103, len(preview))
	assert.Equal(t, strings.Repeat("a", 100)+"...", preview)
}

func TestDerivePreviewText_ExactLimitNotTruncated(t *testing.T) {
	exact := strings.Repeat("b", PreviewTextLimit)
	assert.Equal(t, exact, DerivePreviewText(exact))
}

func TestDerivePreviewText_MultibyteBelowLimitPassesThrough(t *testing.T) {
	// 99 characters, three bytes each; the limit counts characters.
	text := strings.Repeat("日", 99)
	assert.Equal(t, text, DerivePreviewText(text))
}

func TestDerivePreviewText_MultibyteTruncatesOnRuneBoundary(t *testing.T) {
	preview := DerivePreviewText(strings.Repeat("日", 150))

	require.True(t, utf8.ValidString(preview))
	assert.Equal(t, strings.Repeat("日", PreviewTextLimit)+"...", preview)
	assert.Equal(t, PreviewTextLimit+3, utf8.RuneCountInString(preview))
}

func TestValidateVentText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"valid", "I need to talk about something", false},
		{"empty", "", true},
		{"whitespace only", "    \t\n", true},
		{"too short", "too short", true},
		{"exactly min length", strings.Repeat("x", VentTextMinLength), false},
		{"exactly max length", strings.Repeat("x", VentTextMaxLength), false},
		{"too long", strings.Repeat("x", VentTextMaxLength+1), true},
		{"short after trim", "   hello    ", true},
		{"multibyte below min", strings.Repeat("疲", VentTextMinLength-1), true},
		{"multibyte at min", strings.Repeat("疲", VentTextMinLength), false},
		{"multibyte at max", strings.Repeat("疲", VentTextMaxLength), false},
		{"multibyte above max", strings.Repeat("疲", VentTextMaxLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVentText(tt.text)
			if tt.wantErr {
				require.Error(t, err)

				var validation *ValidationError
				require.True(t, errors.As(err, &validation))
				assert.Equal(t, "vent_text", validation.Field)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlanCatalog(t *testing.T) {
	require.Len(t, Plans, 3)

	tests := []struct {
		name     string
		price    string
		duration int
	}{
		{"10-Min Vent", "2.99", 600},
		{"20-Min Vent", "4.99", 1200},
		{"30-Min Vent", "6.99", 1800},
	}

	for _, tt := range tests {
		plan, ok := PlanByName(tt.name)
		require.True(t, ok, "plan %s should exist", tt.name)
		assert.True(t, plan.Price.Equal(decimal.RequireFromString(tt.price)))
		assert.Equal(t, tt.duration, plan.DurationSeconds)
	}
}

func TestPlanByName_Unknown(t *testing.T) {
	_, ok := PlanByName("60-Min Vent")
	assert.False(t, ok)
}

func TestPlanByName_DefaultExists(t *testing.T) {
	plan, ok := PlanByName(DefaultPlanName)
	require.True(t, ok)
	assert.Equal(t, 1200, plan.DurationSeconds)
	assert.True(t, plan.Popular)
}

func TestRtcConnectionError_Unwrap(t *testing.T) {
	inner := errors.New("dial timeout")
	err := &RtcConnectionError{Channel: "ventbox_abc_123", Attempts: 3, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "ventbox_abc_123")
}
