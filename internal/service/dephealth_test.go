package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"без пути", "http://localhost:3000", "/health"},
		{"со слэшем", "http://localhost:3000/", "/health"},
		{"под префиксом", "https://api.example.com/papermind/", "/papermind/health"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, healthPath(tt.input))
		})
	}
}

// TestDephealthService_NotReadyBeforeStart - до первой проверки readiness = fail.
func TestDephealthService_NotReadyBeforeStart(t *testing.T) {
	ds, err := NewDephealthServiceWithRegisterer(
		"papermind", "papermind", "http://localhost:3000",
		15*time.Second, testLogger(), prometheus.NewRegistry(),
	)
	require.NoError(t, err)

	status, _ := ds.CheckReady()
	assert.Equal(t, "fail", status)
}

func TestBackendHealth(t *testing.T) {
	tests := []struct {
		name        string
		health      map[string]bool
		wantHealthy bool
		wantFound   bool
	}{
		{"пусто", map[string]bool{}, false, false},
		{"ok", map[string]bool{"papermind-backend:localhost:3000": true}, true, true},
		{"fail", map[string]bool{"papermind-backend:localhost:3000": false}, false, true},
		{"чужая зависимость", map[string]bool{"papermind-backend-old:x:1": false}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			healthy, found := backendHealth(tt.health)
			assert.Equal(t, tt.wantHealthy, healthy)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}
