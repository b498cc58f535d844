package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	code, err := GenerateCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 12)
	assert.Equal(t, strings.ToUpper(code), code)
}

func TestGenerateChannelName_FormatAndValidity(t *testing.T) {
	name := GenerateChannelName()

	assert.True(t, strings.HasPrefix(name, "ventbox_"))
	assert.True(t, ValidChannelName(name), "generated name %q should be valid", name)
	assert.Equal(t, 3, len(strings.Split(name, "_")))
}

func TestGenerateChannelName_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		name := GenerateChannelName()
		assert.False(t, seen[name], "duplicate channel name %q", name)
		seen[name] = true
	}
}

func TestGenerateRoomID(t *testing.T) {
	id := GenerateRoomID()
	assert.True(t, strings.HasPrefix(id, "room_"))
	assert.NotEqual(t, id, GenerateRoomID())
}

func TestValidChannelName(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"simple", "ventbox_abc_123", true},
		{"with dash", "vent-box-1", true},
		{"empty", "", false},
		{"space", "vent box", false},
		{"special chars", "vent!box", false},
		{"too long", strings.Repeat("a", 65), false},
		{"max length", strings.Repeat("a", 64), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidChannelName(tt.value))
		})
	}
}

func TestNewRedisClient_UnreachableReturnsError(t *testing.T) {
	client, err := NewRedisClient("127.0.0.1:1")
	require.Error(t, err)
	assert.Nil(t, client)
}
