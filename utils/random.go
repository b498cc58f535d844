package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var channelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func GenerateCode(n int) (string, error) {
	// Make a slice of n random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GenerateChannelName returns a globally unique, store-safe voice channel
// identifier: a base36 timestamp plus a random hex suffix.
func GenerateChannelName() string {
	suffix, err := GenerateCode(6)
	if err != nil {
		// crypto/rand is effectively infallible; fall back to nanos.
		suffix = strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return fmt.Sprintf("ventbox_%s_%s", ts, strings.ToLower(suffix))
}

// GenerateRoomID returns an identifier for a venter-opened room.
func GenerateRoomID() string {
	suffix, err := GenerateCode(5)
	if err != nil {
		suffix = strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return fmt.Sprintf("room_%d_%s", time.Now().UnixMilli(), strings.ToLower(suffix))
}

// ValidChannelName reports whether a channel identifier satisfies the voice
// SDK's naming rules (alphanumeric plus _ and -, at most 64 chars).
func ValidChannelName(name string) bool {
	return name != "" && len(name) <= 64 && channelNamePattern.MatchString(name)
}
