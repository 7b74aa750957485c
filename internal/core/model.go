package core

import (
	"path/filepath"
	"strings"
	"time"
)

// Message is the uniform record produced by a message source. It is
// read-only to the analysis engine; empty fields are treated as empty
// strings during scoring.
type Message struct {
	Sender      string    `json:"sender"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Attachments []string  `json:"attachments,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// SenderDomain returns the domain part of the sender address, or "" when
// the sender has no address part.
func (m *Message) SenderDomain() string {
	at := strings.LastIndex(m.Sender, "@")
	if at < 0 || at == len(m.Sender)-1 {
		return ""
	}
	domain := m.Sender[at+1:]
	domain = strings.TrimRight(domain, ">")
	return strings.ToLower(domain)
}

// AttachmentExtensions returns the lowercased extensions of all attachments.
func (m *Message) AttachmentExtensions() []string {
	exts := make([]string, 0, len(m.Attachments))
	for _, att := range m.Attachments {
		exts = append(exts, strings.ToLower(filepath.Ext(att)))
	}
	return exts
}

// UserContext carries organizational metadata for the mailbox owner.
// Supplied per analysis call by a directory/config collaborator and never
// persisted by the engine.
type UserContext struct {
	Department     string   `json:"department"`
	Role           string   `json:"role"`
	ClearanceLevel int      `json:"clearance_level"` // 1-5
	CommonContacts []string `json:"common_contacts"`
}

// ThreatType categorizes a detected threat for trend tracking.
type ThreatType string

const (
	ThreatPhishing   ThreatType = "phishing"
	ThreatMalware    ThreatType = "malware"
	ThreatScam       ThreatType = "scam"
	ThreatSuspicious ThreatType = "suspicious"
	ThreatUnknown    ThreatType = "unknown"
)

// Verdict is the structured result of one analysis call.
type Verdict struct {
	Score        float64          `json:"score"`
	Level        ThreatLevel      `json:"level"`
	Indicators   []string         `json:"indicators"`
	AnalyzedURLs []string         `json:"analyzed_urls"`
	MLConfidence float64          `json:"ml_confidence"`
	Context      *ContextAnalysis `json:"context_analysis,omitempty"`
	Cluster      *ClusterAnalysis `json:"cluster_analysis,omitempty"`
	Trend        *TrendAnalysis   `json:"trend_analysis,omitempty"`
	AnalyzedAt   time.Time        `json:"analyzed_at"`
}

// ContextAnalysis is the output of the context-aware scorer.
type ContextAnalysis struct {
	Score            float64  `json:"context_score"`
	Factors          []string `json:"context_factors"`
	RoleThreats      []string `json:"role_specific_threats"`
	SuggestedActions []string `json:"suggested_actions"`
}

// ClusterAnalysis describes the outcome of one clustering pass.
type ClusterAnalysis struct {
	Clusters      map[int][]Message `json:"clusters"`
	NewPatterns   []ClusterPattern  `json:"new_patterns"`
	TotalClusters int               `json:"total_clusters"`
	NoisePoints   int               `json:"noise_points"`
}

// PatternCharacteristics holds the attribute values shared by a minimum
// fraction of a cluster's members.
type PatternCharacteristics struct {
	CommonIndicators      []string `json:"common_indicators"`
	CommonDomains         []string `json:"common_domains"`
	CommonAttachmentTypes []string `json:"common_attachment_types"`
	CommonURLPatterns     []string `json:"common_url_patterns"`
}

// PatternExample is a short sample summary kept with a recorded pattern.
type PatternExample struct {
	Subject    string   `json:"subject"`
	Indicators []string `json:"indicators"`
}

// ClusterPattern is a confirmed, previously unseen attack pattern. The
// persisted pattern history is capped at the most recent 1000 entries.
type ClusterPattern struct {
	ID              string                 `json:"id"`
	Timestamp       time.Time              `json:"timestamp"`
	Characteristics PatternCharacteristics `json:"characteristics"`
	AvgThreatScore  float64                `json:"avg_threat_score"`
	SampleSize      int                    `json:"sample_size"`
	Examples        []PatternExample       `json:"examples"`
}

// ThreatRecord is one entry in the trend engine's history.
type ThreatRecord struct {
	Timestamp        time.Time  `json:"timestamp"`
	Type             ThreatType `json:"type"`
	Score            float64    `json:"score"`
	Indicators       []string   `json:"indicators,omitempty"`
	TargetDepartment string     `json:"target_department,omitempty"`
	TargetRole       string     `json:"target_role,omitempty"`
}

// WindowStats aggregates the threat history over one trailing window.
type WindowStats struct {
	TotalThreats     int                `json:"total_threats"`
	AvgSeverity      float64            `json:"avg_severity"`
	TypeDistribution map[ThreatType]int `json:"type_distribution"`
}

// Forecasts holds the naive persistence forecasts derived from the
// windowed history.
type Forecasts struct {
	Next24h    int     `json:"next_24h"`
	NextWeek   int     `json:"next_week"`
	Confidence float64 `json:"confidence"`
}

// TrendAnalysis is the trend engine's aggregate output.
type TrendAnalysis struct {
	Windows         map[string]WindowStats `json:"window_analysis"`
	Forecasts       Forecasts              `json:"forecasts"`
	Recommendations []string               `json:"recommendations"`
}

// AdvisorResult is the advisory score returned by an LLM-backed local
// analysis model.
type AdvisorResult struct {
	SpamScore   float64  `json:"spam_score"`
	Confidence  float64  `json:"confidence"`
	Indicators  []string `json:"indicators,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	ModelUsed   string   `json:"model_used,omitempty"`
}

// MLResult is the learned classifier's contribution to a verdict.
type MLResult struct {
	Score       float64           `json:"ml_score"`
	Confidence  float64           `json:"confidence"`
	TopFeatures []WeightedFeature `json:"ml_features,omitempty"`
}

// WeightedFeature pairs a vocabulary term with its weight in a prediction.
type WeightedFeature struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// UserFeedback is the user's judgement on a produced verdict.
type UserFeedback struct {
	IsCorrect       bool   `json:"is_correct"`
	CorrectCategory string `json:"correct_category"`
	Notes           string `json:"notes,omitempty"`
}

// FeedbackEntry is one record in the append-only feedback log.
type FeedbackEntry struct {
	Timestamp      time.Time    `json:"timestamp"`
	Subject        string       `json:"subject"`
	Sender         string       `json:"sender"`
	HasAttachments bool         `json:"has_attachments"`
	BodyLength     int          `json:"body_length"`
	Score          float64      `json:"analysis_score"`
	Level          ThreatLevel  `json:"analysis_level"`
	Indicators     []string     `json:"analysis_indicators"`
	Feedback       UserFeedback `json:"user_feedback"`
}

// Reputation statuses reported by the threat-intelligence collaborator.
const (
	StatusClean       = "clean"
	StatusSuspicious  = "suspicious"
	StatusBlacklisted = "blacklisted"
	StatusError       = "error"
)

// URLCheckResult is the per-URL outcome of a reputation lookup.
type URLCheckResult struct {
	SafeBrowsing string `json:"safe_browsing"`
	PhishTank    string `json:"phishtank"`
}

// ReputationResult is the DNSBL verdict for a sender domain.
type ReputationResult struct {
	Spamhaus string `json:"spamhaus"`
	SURBL    string `json:"surbl"`
}

// AttachmentScanResult summarizes an attachment reputation lookup. Err is
// set when the scan could not be performed.
type AttachmentScanResult struct {
	Malicious  int    `json:"malicious"`
	Suspicious int    `json:"suspicious"`
	Clean      int    `json:"clean"`
	Err        string `json:"error,omitempty"`
}

// CommunicationPattern describes a recurring, expected communication for a
// department/role pair.
type CommunicationPattern struct {
	Department      string    `json:"department"`
	Role            string    `json:"role"`
	Sender          string    `json:"sender"`
	Frequency       string    `json:"frequency"` // "daily", "weekly", "monthly"
	TypicalSubjects []string  `json:"typical_subjects"`
	TypicalTimes    []string  `json:"typical_times"` // "HH:MM"
	Importance      int       `json:"importance"`    // 1-5
	Added           time.Time `json:"added"`
}

// OrganizationContext is the persisted organizational state. Loaded at
// startup, saved after every mutation.
type OrganizationContext struct {
	Departments           []string               `json:"departments"`
	Roles                 []string               `json:"roles"`
	CommunicationPatterns []CommunicationPattern `json:"communication_patterns"`
}
