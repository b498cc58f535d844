package rtc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenClient_Fetch(t *testing.T) {
	var got tokenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]string{"token": "tok-123"})
	}))
	defer srv.Close()

	client := NewTokenClient(srv.URL, time.Second)
	token, err := client.Fetch(context.Background(), "ventbox_abc_def", "user-1")
	require.NoError(t, err)

	assert.Equal(t, "tok-123", token)
	assert.Equal(t, "ventbox_abc_def", got.ChannelName)
	assert.Equal(t, "user-1", got.UID)
	assert.Equal(t, "publisher", got.Role)
	assert.Equal(t, 3600, got.ExpireTime)
}

func TestTokenClient_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewTokenClient(srv.URL, time.Second)
	_, err := client.Fetch(context.Background(), "chan", "uid")
	assert.ErrorContains(t, err, "status 500")
}

func TestTokenClient_EmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": ""})
	}))
	defer srv.Close()

	client := NewTokenClient(srv.URL, time.Second)
	_, err := client.Fetch(context.Background(), "chan", "uid")
	assert.ErrorContains(t, err, "empty token")
}

func TestTokenClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewTokenClient(srv.URL, 30*time.Millisecond)
	start := time.Now()
	_, err := client.Fetch(context.Background(), "chan", "uid")

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}
