// Package contextaware adjusts threat scores using organizational context:
// user role, department communication patterns and known contacts. The
// organization context is persisted through the model store and saved
// after every mutation.
package contextaware

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

const (
	orgContextKey   = "organization_context"
	roleModelPrefix = "role_model:"
)

// Sub-score weights and caps for the combined context score.
const (
	roleWeight         = 0.4
	departmentWeight   = 0.3
	contactWeight      = 0.3
	senderMatchBonus   = 0.3
	subjectMatchBonus  = 0.3
	maxClearanceBonus  = 0.4
	knownContactTrust  = 0.8
	knownDomainTrust   = 0.5
	unknownSenderTrust = 0.2
)

// roleThreat maps a content keyword to a role-specific threat label.
type roleThreat struct {
	keyword string
	label   string
}

// roleThreats is the keyword-to-threat mapping scoped per role.
var roleThreats = map[string][]roleThreat{
	"finance": {
		{"bank", "Possible banking trojan"},
		{"rechnung", "Fake invoice"},
		{"zahlung", "Fake payment request"},
	},
	"hr": {
		{"bewerbung", "Fake job application"},
		{"lebenslauf", "Manipulated resume"},
		{"vertrag", "Fake employment contract"},
	},
	"it": {
		{"admin", "Fake admin request"},
		{"passwort", "Password phishing"},
		{"zugang", "Unauthorized access attempt"},
	},
}

// Analyzer scores messages against the persisted organization context and
// per-role anomaly models.
type Analyzer struct {
	mu         sync.Mutex
	store      core.ModelStore
	logger     *zap.Logger
	org        core.OrganizationContext
	roleModels map[string]*RoleModel
	now        func() time.Time
}

// NewAnalyzer creates a context analyzer, restoring the organization
// context and all known role models from the store.
func NewAnalyzer(store core.ModelStore, logger *zap.Logger) *Analyzer {
	a := &Analyzer{
		store:      store,
		logger:     logger,
		roleModels: make(map[string]*RoleModel),
		now:        time.Now,
	}

	if data, ok := store.Load(orgContextKey); ok {
		if err := json.Unmarshal(data, &a.org); err != nil {
			logger.Error("Failed to decode organization context, starting empty", zap.Error(err))
			a.org = core.OrganizationContext{}
		}
	}
	a.loadRoleModels()

	return a
}

// AnalyzeWithContext evaluates a message for the given user context. Any
// internal failure yields a zero/empty analysis, never an error.
func (a *Analyzer) AnalyzeWithContext(msg *core.Message, uc *core.UserContext) *core.ContextAnalysis {
	a.mu.Lock()
	defer a.mu.Unlock()

	analysis := &core.ContextAnalysis{
		Factors:          []string{},
		RoleThreats:      []string{},
		SuggestedActions: []string{},
	}

	roleScore := a.roleScore(msg, uc)
	deptScore := a.departmentScore(msg, uc)
	contactScore := contactScore(msg, uc)

	combined := roleScore*roleWeight + deptScore*departmentWeight + contactScore*contactWeight
	if combined > 1 {
		combined = 1
	}
	if combined < 0 {
		combined = 0
	}
	analysis.Score = combined

	if a.isContextualAnomaly(msg, uc) {
		analysis.Factors = append(analysis.Factors,
			"Unusual communication pattern for this role/department")
	}

	analysis.RoleThreats = append(analysis.RoleThreats, roleSpecificThreats(msg, uc)...)
	analysis.SuggestedActions = suggestedActions(combined, uc)

	return analysis
}

// UpdateOrganizationContext merges new departments, roles and patterns
// into the persisted context and ensures a role model exists for every
// known role.
func (a *Analyzer) UpdateOrganizationContext(update core.OrganizationContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.org.Departments = mergeUnique(a.org.Departments, update.Departments)
	a.org.Roles = mergeUnique(a.org.Roles, update.Roles)
	a.org.CommunicationPatterns = append(a.org.CommunicationPatterns, update.CommunicationPatterns...)

	if err := a.saveOrganizationContext(); err != nil {
		return err
	}

	for _, role := range a.org.Roles {
		if _, ok := a.roleModels[role]; !ok {
			a.roleModels[role] = NewRoleModel(role)
		}
		a.retrainRoleModel(role)
	}
	return nil
}

// AddCommunicationPattern appends a pattern, persists the context and
// retrains the affected role model.
func (a *Analyzer) AddCommunicationPattern(pattern core.CommunicationPattern) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if pattern.Added.IsZero() {
		pattern.Added = a.now()
	}
	a.org.CommunicationPatterns = append(a.org.CommunicationPatterns, pattern)
	a.org.Roles = mergeUnique(a.org.Roles, []string{pattern.Role})
	if pattern.Department != "" {
		a.org.Departments = mergeUnique(a.org.Departments, []string{pattern.Department})
	}

	if err := a.saveOrganizationContext(); err != nil {
		return err
	}
	a.retrainRoleModel(pattern.Role)
	return nil
}

// Organization returns a copy of the current organization context.
func (a *Analyzer) Organization() core.OrganizationContext {
	a.mu.Lock()
	defer a.mu.Unlock()

	org := core.OrganizationContext{
		Departments: append([]string(nil), a.org.Departments...),
		Roles:       append([]string(nil), a.org.Roles...),
	}
	org.CommunicationPatterns = append(org.CommunicationPatterns, a.org.CommunicationPatterns...)
	return org
}

// SetClock overrides the time source. Intended for tests.
func (a *Analyzer) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

// roleScore maps the role model's anomaly score to [0,1]; unknown roles
// and untrained models contribute 0.
func (a *Analyzer) roleScore(msg *core.Message, uc *core.UserContext) float64 {
	model, ok := a.roleModels[uc.Role]
	if uc.Role == "" || !ok || !model.Trained() {
		return 0
	}
	features := a.roleFeatures(msg, uc)
	return (model.Score(features) + 1) / 2
}

// roleFeatures builds the fixed feature vector for the role model.
func (a *Analyzer) roleFeatures(msg *core.Message, uc *core.UserContext) []float64 {
	hour := float64(a.now().Hour()) / 24.0

	knownContact := 0.0
	for _, contact := range uc.CommonContacts {
		if contact == msg.Sender {
			knownContact = 1.0
			break
		}
	}

	hasAttachments := 0.0
	if len(msg.Attachments) > 0 {
		hasAttachments = 1.0
	}

	return []float64{hour, knownContact, float64(uc.ClearanceLevel) / 5.0, hasAttachments}
}

// departmentScore rates the message against the department's known
// communication patterns.
func (a *Analyzer) departmentScore(msg *core.Message, uc *core.UserContext) float64 {
	if uc.Department == "" {
		return 0
	}
	patterns := a.departmentPatterns(uc.Department)
	if len(patterns) == 0 {
		return 0
	}

	score := 0.0

	for _, p := range patterns {
		if p.Sender == msg.Sender {
			score += senderMatchBonus
			break
		}
	}

	subject := strings.ToLower(msg.Subject)
	subjectMatched := false
	for _, p := range patterns {
		for _, typical := range p.TypicalSubjects {
			if strings.Contains(subject, strings.ToLower(typical)) {
				subjectMatched = true
				break
			}
		}
		if subjectMatched {
			break
		}
	}
	if subjectMatched {
		score += subjectMatchBonus
	}

	bonus := float64(uc.ClearanceLevel) / 10
	if bonus > maxClearanceBonus {
		bonus = maxClearanceBonus
	}
	score += bonus

	return score
}

// departmentPatterns returns the communication patterns recorded for one
// department; caller holds the lock.
func (a *Analyzer) departmentPatterns(department string) []core.CommunicationPattern {
	var patterns []core.CommunicationPattern
	for _, p := range a.org.CommunicationPatterns {
		if strings.EqualFold(p.Department, department) {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// contactScore expresses baseline trust in the sender relative to the
// user's known contacts.
func contactScore(msg *core.Message, uc *core.UserContext) float64 {
	if len(uc.CommonContacts) == 0 || msg.Sender == "" {
		return 0
	}

	for _, contact := range uc.CommonContacts {
		if contact == msg.Sender {
			return knownContactTrust
		}
	}

	senderDomain := msg.SenderDomain()
	if senderDomain != "" {
		for _, contact := range uc.CommonContacts {
			if at := strings.LastIndex(contact, "@"); at >= 0 &&
				strings.EqualFold(contact[at+1:], senderDomain) {
				return knownDomainTrust
			}
		}
	}

	return unknownSenderTrust
}

// isContextualAnomaly flags messages arriving outside the role's typical
// hours or from senders the role never communicates with. Only evaluated
// when historical patterns exist for the role.
func (a *Analyzer) isContextualAnomaly(msg *core.Message, uc *core.UserContext) bool {
	var rolePatterns []core.CommunicationPattern
	for _, p := range a.org.CommunicationPatterns {
		if p.Role == uc.Role {
			rolePatterns = append(rolePatterns, p)
		}
	}
	if len(rolePatterns) == 0 {
		return false
	}

	typicalHours := make(map[int]struct{})
	typicalSenders := make(map[string]struct{})
	for _, p := range rolePatterns {
		for _, t := range p.TypicalTimes {
			if hour, ok := parseHour(t); ok {
				typicalHours[hour] = struct{}{}
			}
		}
		typicalSenders[p.Sender] = struct{}{}
	}

	if len(typicalHours) > 0 {
		if _, ok := typicalHours[a.now().Hour()]; !ok {
			return true
		}
	}
	if len(typicalSenders) > 0 {
		if _, ok := typicalSenders[msg.Sender]; !ok {
			return true
		}
	}
	return false
}

// roleSpecificThreats matches role-scoped threat phrases against the
// message content.
func roleSpecificThreats(msg *core.Message, uc *core.UserContext) []string {
	threats := []string{}
	mapping, ok := roleThreats[strings.ToLower(uc.Role)]
	if !ok {
		return threats
	}

	content := strings.ToLower(msg.Subject + " " + msg.Body)
	for _, t := range mapping {
		if strings.Contains(content, t.keyword) {
			threats = append(threats, t.label)
		}
	}
	return threats
}

// suggestedActions derives handling advice from the combined score.
func suggestedActions(score float64, uc *core.UserContext) []string {
	switch {
	case score < 0.3:
		return []string{
			"Notify IT security immediately",
			"Do not open or reply to this message",
		}
	case score < 0.6:
		if uc.ClearanceLevel >= 4 {
			return []string{"Review personally before acting"}
		}
		return []string{"Forward to supervisor for review"}
	default:
		return []string{"Apply normal precautions"}
	}
}

// retrainRoleModel refits a role model from that role's communication
// patterns and persists it; caller holds the lock.
func (a *Analyzer) retrainRoleModel(role string) {
	model, ok := a.roleModels[role]
	if !ok {
		model = NewRoleModel(role)
		a.roleModels[role] = model
	}

	var samples [][]float64
	for _, p := range a.org.CommunicationPatterns {
		if p.Role != role {
			continue
		}
		importance := float64(p.Importance) / 5.0
		times := p.TypicalTimes
		if len(times) == 0 {
			times = []string{"09:00"}
		}
		for _, t := range times {
			hour, ok := parseHour(t)
			if !ok {
				continue
			}
			samples = append(samples, []float64{float64(hour) / 24.0, 1.0, importance, 0.0})
		}
	}
	if len(samples) == 0 {
		return
	}
	model.Fit(samples)

	data, err := json.Marshal(model)
	if err != nil {
		a.logger.Error("Failed to encode role model", zap.String("role", role), zap.Error(err))
		return
	}
	if err := a.store.Save(roleModelPrefix+role, data); err != nil {
		a.logger.Error("Failed to persist role model", zap.String("role", role), zap.Error(err))
	}
}

// loadRoleModels restores all persisted role models.
func (a *Analyzer) loadRoleModels() {
	keys, err := a.store.List(roleModelPrefix)
	if err != nil {
		a.logger.Error("Failed to list role models", zap.Error(err))
		keys = nil
	}
	for _, key := range keys {
		data, ok := a.store.Load(key)
		if !ok {
			continue
		}
		var model RoleModel
		if err := json.Unmarshal(data, &model); err != nil {
			a.logger.Error("Failed to decode role model, skipping", zap.String("key", key), zap.Error(err))
			continue
		}
		a.roleModels[model.Role] = &model
	}

	// Roles named in the context but without a stored artifact start with
	// an untrained model.
	for _, role := range a.org.Roles {
		if _, ok := a.roleModels[role]; !ok {
			a.roleModels[role] = NewRoleModel(role)
		}
	}
}

// saveOrganizationContext persists the context; caller holds the lock.
func (a *Analyzer) saveOrganizationContext() error {
	data, err := json.Marshal(a.org)
	if err != nil {
		return fmt.Errorf("failed to encode organization context: %w", err)
	}
	if err := a.store.Save(orgContextKey, data); err != nil {
		return fmt.Errorf("failed to persist organization context: %w", err)
	}
	return nil
}

func parseHour(hhmm string) (int, bool) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) == 0 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}

func mergeUnique(existing, extra []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		seen[item] = struct{}{}
	}
	for _, item := range extra {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; !ok {
			seen[item] = struct{}{}
			existing = append(existing, item)
		}
	}
	return existing
}
