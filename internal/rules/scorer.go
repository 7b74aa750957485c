// Package rules implements the deterministic, table-driven heuristic
// scorer. All checks are pure: the same input yields the same score and
// indicator set, and missing fields are treated as empty.
package rules

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

var (
	emailPattern = regexp.MustCompile(`<?([\w.-]+@[\w.-]+\.\w+)>?`)
	urlPattern   = regexp.MustCompile(`http[s]?://[^\s<>"']+`)
)

// Result collects the outcome of one rule evaluation. Scores are
// non-negative and unbounded; normalization happens at the fusion stage.
type Result struct {
	SenderScore     float64
	SubjectScore    float64
	BodyScore       float64
	AttachmentScore float64
	Indicators      []string
	URLs            []string
}

// Average returns the mean of the four section scores.
func (r *Result) Average() float64 {
	return (r.SenderScore + r.SubjectScore + r.BodyScore + r.AttachmentScore) / 4
}

// Scorer evaluates messages against configured keyword, extension, TLD and
// URL pattern tables.
type Scorer struct {
	cfg    config.RulesConfig
	logger *zap.Logger
}

// NewScorer creates a rule-based scorer from configuration.
func NewScorer(cfg config.RulesConfig, logger *zap.Logger) *Scorer {
	return &Scorer{cfg: cfg, logger: logger}
}

// Evaluate runs all rule checks on a message.
func (s *Scorer) Evaluate(msg *core.Message) *Result {
	res := &Result{}
	res.SenderScore = s.checkSender(msg.Sender, res)
	res.SubjectScore = s.checkSubject(msg.Subject, res)
	res.BodyScore = s.checkBody(msg.Body, res)
	res.AttachmentScore = s.checkAttachments(msg.Attachments, res)
	return res
}

// checkSender inspects the sender address for suspicious patterns.
func (s *Scorer) checkSender(sender string, res *Result) float64 {
	score := 0.0

	if sender == "" {
		res.Indicators = append(res.Indicators, "Missing sender")
		return s.cfg.Weights.SenderSuspiciousDomain
	}

	match := emailPattern.FindStringSubmatch(sender)
	if match == nil {
		res.Indicators = append(res.Indicators, "Invalid sender address format")
		return s.cfg.Weights.SenderSuspiciousDomain
	}

	addr := strings.ToLower(match[1])
	domain := addr[strings.LastIndex(addr, "@")+1:]

	if s.hasSuspiciousTLD(domain) {
		res.Indicators = append(res.Indicators, fmt.Sprintf("Suspicious sender domain: %s", domain))
		score += s.cfg.Weights.SenderSuspiciousDomain
	}

	// A display name stuffed with high-risk keywords suggests spoofing.
	displayName := ""
	if idx := strings.Index(sender, "<"); idx > 0 {
		displayName = strings.ToLower(strings.TrimSpace(sender[:idx]))
	}
	if displayName != "" && containsAny(displayName, s.cfg.Keywords.HighRisk) {
		res.Indicators = append(res.Indicators, "Possibly spoofed display name")
		score += s.cfg.Weights.SenderSpoofedDisplayName
	}

	return score
}

// checkSubject matches the subject against all keyword tiers. Matches
// accumulate across tiers, there is no early exit.
func (s *Scorer) checkSubject(subject string, res *Result) float64 {
	score := 0.0
	if subject == "" {
		return score
	}

	lower := strings.ToLower(subject)

	for _, kw := range s.cfg.Keywords.HighRisk {
		if strings.Contains(lower, kw) {
			res.Indicators = append(res.Indicators, fmt.Sprintf("High-risk keyword in subject: %s", kw))
			score += s.cfg.Weights.SubjectHighRiskKeyword
		}
	}
	for _, kw := range s.cfg.Keywords.MediumRisk {
		if strings.Contains(lower, kw) {
			res.Indicators = append(res.Indicators, fmt.Sprintf("Medium-risk keyword in subject: %s", kw))
			score += s.cfg.Weights.SubjectMediumRiskKeyword
		}
	}
	for _, kw := range s.cfg.Keywords.LowRisk {
		if strings.Contains(lower, kw) {
			res.Indicators = append(res.Indicators, fmt.Sprintf("Low-risk keyword in subject: %s", kw))
			score += s.cfg.Weights.SubjectLowRiskKeyword
		}
	}

	return score
}

// checkBody scans the body for keywords, URLs and urgency language.
func (s *Scorer) checkBody(body string, res *Result) float64 {
	score := 0.0
	if body == "" {
		return score
	}

	lower := strings.ToLower(body)

	tiers := []struct {
		label    string
		keywords []string
		weight   float64
	}{
		{"High risk", s.cfg.Keywords.HighRisk, s.cfg.Weights.BodyHighRiskKeyword},
		{"Medium risk", s.cfg.Keywords.MediumRisk, s.cfg.Weights.BodyMediumRiskKeyword},
		{"Low risk", s.cfg.Keywords.LowRisk, s.cfg.Weights.BodyLowRiskKeyword},
	}
	for _, tier := range tiers {
		for _, kw := range tier.keywords {
			if strings.Contains(lower, kw) {
				res.Indicators = append(res.Indicators, fmt.Sprintf("%s keyword in body: %s", tier.label, kw))
				score += tier.weight
			}
		}
	}

	if urls := ExtractURLs(body); len(urls) > 0 {
		score += s.analyzeURLs(urls, res)
	}

	if containsAny(lower, s.cfg.UrgencyTerms) {
		res.Indicators = append(res.Indicators, "Urgency language in body")
		score += s.cfg.Weights.BodyUrgentLanguage
	}

	return score
}

// checkAttachments scores attachments by extension tier. Only the first
// matching tier counts per attachment, checked high to low.
func (s *Scorer) checkAttachments(attachments []string, res *Result) float64 {
	score := 0.0
	if len(attachments) == 0 {
		return score
	}

	if len(attachments) > 1 {
		res.Indicators = append(res.Indicators, fmt.Sprintf("Multiple attachments (%d)", len(attachments)))
		score += s.cfg.Weights.AttachmentMultipleWeights
	}

	for _, att := range attachments {
		lower := strings.ToLower(att)
		switch {
		case hasAnySuffix(lower, s.cfg.Extensions.HighRisk):
			res.Indicators = append(res.Indicators, fmt.Sprintf("High-risk attachment: %s", att))
			score += s.cfg.Weights.AttachmentHighRiskExt
		case hasAnySuffix(lower, s.cfg.Extensions.MediumRisk):
			res.Indicators = append(res.Indicators, fmt.Sprintf("Medium-risk attachment: %s", att))
			score += s.cfg.Weights.AttachmentMediumRiskExt
		case hasAnySuffix(lower, s.cfg.Extensions.LowRisk):
			res.Indicators = append(res.Indicators, fmt.Sprintf("Low-risk attachment: %s", att))
			score += s.cfg.Weights.AttachmentLowRiskExt
		}
	}

	return score
}

// analyzeURLs flags a high URL count and suspicious URL hosts.
func (s *Scorer) analyzeURLs(urls []string, res *Result) float64 {
	score := 0.0
	res.URLs = append(res.URLs, urls...)

	if len(urls) > 3 {
		res.Indicators = append(res.Indicators, fmt.Sprintf("Many URLs found (%d)", len(urls)))
		score += s.cfg.Weights.BodyMultipleURLs
	}

	for _, raw := range urls {
		parsed, err := url.Parse(raw)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn("Failed to parse URL", zap.String("url", raw), zap.Error(err))
			}
			continue
		}
		host := strings.ToLower(parsed.Hostname())
		if s.hasSuspiciousTLD(host) {
			res.Indicators = append(res.Indicators, fmt.Sprintf("Suspicious URL domain: %s", host))
			score += s.cfg.Weights.BodySuspiciousURL
		}
	}

	return score
}

func (s *Scorer) hasSuspiciousTLD(domain string) bool {
	for _, tld := range s.cfg.SuspiciousTLDs {
		if strings.Contains(domain, tld) {
			return true
		}
	}
	return false
}

// ExtractURLs returns the deduplicated http(s) URLs found in text,
// preserving first-seen order.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		urls = append(urls, m)
	}
	return urls
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func hasAnySuffix(text string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(text, suffix) {
			return true
		}
	}
	return false
}
