package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		expected ThreatLevel
	}{
		{"zero", 0, LevelLow},
		{"just below medium", 3.99, LevelLow},
		{"medium boundary", 4.0, LevelMedium},
		{"between", 6.5, LevelMedium},
		{"high boundary", 7.0, LevelHigh},
		{"maximum", 10, LevelHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LevelForScore(tt.score))
		})
	}
}

func TestThreatLevelText(t *testing.T) {
	assert.Equal(t, "HIGH", LevelHigh.String())
	assert.Equal(t, "MEDIUM", LevelMedium.String())
	assert.Equal(t, "LOW", LevelLow.String())

	assert.Equal(t, "🔴", LevelHigh.Icon())
	assert.Equal(t, "🟡", LevelMedium.Icon())
	assert.Equal(t, "🟢", LevelLow.Icon())
}

func TestThreatLevelJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(LevelHigh)
	require.NoError(t, err)
	assert.Equal(t, `"HIGH"`, string(data))

	var level ThreatLevel
	require.NoError(t, json.Unmarshal([]byte(`"MEDIUM"`), &level))
	assert.Equal(t, LevelMedium, level)

	// Unknown names degrade to LOW instead of failing.
	require.NoError(t, json.Unmarshal([]byte(`"CRITICAL"`), &level))
	assert.Equal(t, LevelLow, level)
}

func TestSenderDomain(t *testing.T) {
	tests := []struct {
		name     string
		sender   string
		expected string
	}{
		{"plain address", "user@example.com", "example.com"},
		{"display name", "Support <support@bank.de>", "bank.de"},
		{"uppercase", "USER@EXAMPLE.COM", "example.com"},
		{"no address", "just a name", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Message{Sender: tt.sender}
			assert.Equal(t, tt.expected, msg.SenderDomain())
		})
	}
}

func TestAttachmentExtensions(t *testing.T) {
	msg := Message{Attachments: []string{"Invoice.PDF", "run.exe", "noext"}}
	assert.Equal(t, []string{".pdf", ".exe", ""}, msg.AttachmentExtensions())
}
