package contextaware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/adapters/store"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

func TestContactScore(t *testing.T) {
	tests := []struct {
		name     string
		sender   string
		contacts []string
		expected float64
	}{
		{"known contact", "partner@firma.example", []string{"partner@firma.example"}, 0.8},
		{"known domain", "neu@firma.example", []string{"partner@firma.example"}, 0.5},
		{"unknown sender", "wer@anders.example", []string{"partner@firma.example"}, 0.2},
		{"no contacts", "wer@anders.example", nil, 0.0},
		{"no sender", "", []string{"partner@firma.example"}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &core.Message{Sender: tt.sender}
			uc := &core.UserContext{CommonContacts: tt.contacts}
			assert.Equal(t, tt.expected, contactScore(msg, uc))
		})
	}
}

func TestAnalyzeWithContextScoreBounds(t *testing.T) {
	a := NewAnalyzer(store.NewMemoryStore(), zap.NewNop())

	analysis := a.AnalyzeWithContext(
		&core.Message{Sender: "partner@firma.example"},
		&core.UserContext{
			Role:           "finance",
			Department:     "buchhaltung",
			ClearanceLevel: 5,
			CommonContacts: []string{"partner@firma.example"},
		},
	)

	assert.GreaterOrEqual(t, analysis.Score, 0.0)
	assert.LessOrEqual(t, analysis.Score, 1.0)
	assert.NotNil(t, analysis.SuggestedActions)
}

func TestRoleSpecificThreats(t *testing.T) {
	a := NewAnalyzer(store.NewMemoryStore(), zap.NewNop())

	analysis := a.AnalyzeWithContext(
		&core.Message{Subject: "Offene Rechnung", Body: "Bitte Zahlung an neue Bank"},
		&core.UserContext{Role: "finance"},
	)

	assert.Contains(t, analysis.RoleThreats, "Fake invoice")
	assert.Contains(t, analysis.RoleThreats, "Fake payment request")
	assert.Contains(t, analysis.RoleThreats, "Possible banking trojan")
}

func TestSuggestedActions(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		clearance int
		expected  string
	}{
		{"low trust escalates", 0.1, 1, "Notify IT security immediately"},
		{"medium trust forwards", 0.4, 1, "Forward to supervisor for review"},
		{"medium trust with clearance", 0.4, 4, "Review personally before acting"},
		{"high trust", 0.9, 1, "Apply normal precautions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := suggestedActions(tt.score, &core.UserContext{ClearanceLevel: tt.clearance})
			assert.Contains(t, actions, tt.expected)
		})
	}
}

func TestOrganizationContextRoundTrip(t *testing.T) {
	st := store.NewMemoryStore()
	a := NewAnalyzer(st, zap.NewNop())

	require.NoError(t, a.UpdateOrganizationContext(core.OrganizationContext{
		Departments: []string{"buchhaltung"},
		Roles:       []string{"finance"},
	}))
	require.NoError(t, a.AddCommunicationPattern(core.CommunicationPattern{
		Department:      "buchhaltung",
		Role:            "finance",
		Sender:          "erp@firma.example",
		Frequency:       "daily",
		TypicalSubjects: []string{"Tagesabschluss"},
		TypicalTimes:    []string{"09:00", "17:00"},
		Importance:      4,
	}))

	restored := NewAnalyzer(st, zap.NewNop())
	org := restored.Organization()

	assert.Equal(t, []string{"buchhaltung"}, org.Departments)
	assert.Equal(t, []string{"finance"}, org.Roles)
	require.Len(t, org.CommunicationPatterns, 1)
	assert.Equal(t, "erp@firma.example", org.CommunicationPatterns[0].Sender)
	assert.False(t, org.CommunicationPatterns[0].Added.IsZero())

	// The trained role model survives the restart and contributes to the
	// combined score.
	keys, err := st.List("role_model:")
	require.NoError(t, err)
	assert.Equal(t, []string{"role_model:finance"}, keys)
}

func TestDepartmentScoreUsesPatterns(t *testing.T) {
	a := NewAnalyzer(store.NewMemoryStore(), zap.NewNop())
	require.NoError(t, a.AddCommunicationPattern(core.CommunicationPattern{
		Department:      "buchhaltung",
		Role:            "finance",
		Sender:          "erp@firma.example",
		TypicalSubjects: []string{"Tagesabschluss"},
		TypicalTimes:    []string{"09:00"},
		Importance:      4,
	}))

	matching := a.AnalyzeWithContext(
		&core.Message{Sender: "erp@firma.example", Subject: "Tagesabschluss Mai"},
		&core.UserContext{Department: "buchhaltung", Role: "other"},
	)
	foreign := a.AnalyzeWithContext(
		&core.Message{Sender: "wer@anders.example", Subject: "Dringend"},
		&core.UserContext{Department: "buchhaltung", Role: "other"},
	)

	assert.Greater(t, matching.Score, foreign.Score)
}

func TestDepartmentPatternFilter(t *testing.T) {
	a := NewAnalyzer(store.NewMemoryStore(), zap.NewNop())
	require.NoError(t, a.AddCommunicationPattern(core.CommunicationPattern{
		Department: "Buchhaltung",
		Role:       "finance",
		Sender:     "erp@firma.example",
	}))
	require.NoError(t, a.AddCommunicationPattern(core.CommunicationPattern{
		Department: "vertrieb",
		Role:       "sales",
		Sender:     "crm@firma.example",
	}))

	// Department names match case-insensitively, other departments are
	// filtered out.
	patterns := a.departmentPatterns("buchhaltung")
	require.Len(t, patterns, 1)
	assert.Equal(t, "erp@firma.example", patterns[0].Sender)

	assert.Empty(t, a.departmentPatterns("einkauf"))
}

func TestContextualAnomalyFlagged(t *testing.T) {
	a := NewAnalyzer(store.NewMemoryStore(), zap.NewNop())
	require.NoError(t, a.AddCommunicationPattern(core.CommunicationPattern{
		Role:         "finance",
		Sender:       "erp@firma.example",
		TypicalTimes: []string{"09:00"},
	}))
	a.SetClock(func() time.Time {
		return time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	})

	analysis := a.AnalyzeWithContext(
		&core.Message{Sender: "fremd@anders.example"},
		&core.UserContext{Role: "finance"},
	)

	assert.Contains(t, analysis.Factors,
		"Unusual communication pattern for this role/department")
}
