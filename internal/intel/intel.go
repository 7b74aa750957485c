// Package intel implements the threat-intelligence collaborator: URL and
// sender reputation lookups, a lightweight spam heuristic, attachment
// hashing with optional VirusTotal lookups and local advisory analysis.
// Every method degrades to an error status instead of failing the caller.
package intel

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

const (
	spamhausZone = "zen.spamhaus.org"
	surblZone    = "multi.surbl.org"

	virusTotalFileURL = "https://www.virustotal.com/api/v3/files/"

	defaultWorkers = 5
	defaultTimeout = 10 * time.Second
)

// Hosts treated as suspicious by the offline URL check when no external
// reputation service is reachable.
var suspiciousURLMarkers = []string{
	".xyz", ".top", ".click", "bit.ly", "tinyurl.com", "login-", "-secure",
}

// Heuristic spam phrases with their score contributions.
var spamPhrases = map[string]float64{
	"viagra":            2.5,
	"casino":            2.0,
	"lottery":           2.0,
	"gewinn":            1.5,
	"click here":        1.0,
	"klicken sie hier":  1.0,
	"100% free":         1.5,
	"act now":           1.5,
	"limited offer":     1.0,
	"krypto":            1.0,
	"unsubscribe below": 0.5,
}

// Service performs reputation and advisory lookups for the scoring
// engine.
type Service struct {
	cfg      config.IntelConfig
	logger   *zap.Logger
	resolver *net.Resolver
	client   *http.Client
	advisor  core.Advisor
	timeout  time.Duration
	workers  int
}

// NewService creates an intelligence service. The advisor is optional;
// without it AnalyzeTextLocal reports an error status.
func NewService(cfg config.IntelConfig, advisor core.Advisor, logger *zap.Logger) *Service {
	timeout := defaultTimeout
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Service{
		cfg:      cfg,
		logger:   logger,
		resolver: net.DefaultResolver,
		client:   &http.Client{Timeout: timeout},
		advisor:  advisor,
		timeout:  timeout,
		workers:  workers,
	}
}

// CheckURLs looks up a batch of URLs concurrently with a bounded worker
// pool. Results are keyed by the original URL string.
func (s *Service) CheckURLs(ctx context.Context, urls []string) map[string]core.URLCheckResult {
	results := make(map[string]core.URLCheckResult, len(urls))
	if len(urls) == 0 {
		return results
	}

	type outcome struct {
		url    string
		result core.URLCheckResult
	}

	jobs := make(chan string)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				outcomes <- outcome{url: u, result: s.checkURL(ctx, u)}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, u := range urls {
			select {
			case jobs <- u:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for o := range outcomes {
		results[o.url] = o.result
	}
	return results
}

// CheckSenderReputation queries the Spamhaus and SURBL DNS blocklists for
// a sender domain.
func (s *Service) CheckSenderReputation(ctx context.Context, domain string) core.ReputationResult {
	if domain == "" {
		return core.ReputationResult{Spamhaus: core.StatusError, SURBL: core.StatusError}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return core.ReputationResult{
		Spamhaus: s.dnsblStatus(ctx, domain, spamhausZone),
		SURBL:    s.dnsblStatus(ctx, domain, surblZone),
	}
}

// SpamScore computes a phrase-based spam score for raw message text,
// capped at 10.
func (s *Service) SpamScore(raw string) float64 {
	text := strings.ToLower(raw)
	var score float64
	for phrase, weight := range spamPhrases {
		if strings.Contains(text, phrase) {
			score += weight
		}
	}

	// Excessive capitalization is a weak spam signal.
	letters, uppers := 0, 0
	for _, r := range raw {
		if r >= 'A' && r <= 'Z' {
			uppers++
			letters++
		} else if r >= 'a' && r <= 'z' {
			letters++
		}
	}
	if letters > 20 && float64(uppers)/float64(letters) > 0.3 {
		score += 1.5
	}

	if score > 10 {
		score = 10
	}
	return score
}

// AnalyzeAttachment hashes the file and, when an API key is configured,
// queries VirusTotal for the hash.
func (s *Service) AnalyzeAttachment(ctx context.Context, path string) core.AttachmentScanResult {
	hash, err := hashFile(path)
	if err != nil {
		return core.AttachmentScanResult{Err: fmt.Sprintf("failed to hash attachment: %v", err)}
	}

	if s.cfg.VirusTotalAPIKey == "" {
		return core.AttachmentScanResult{Err: "no attachment reputation service configured"}
	}

	result, err := s.virusTotalLookup(ctx, hash)
	if err != nil {
		s.logger.Warn("Attachment reputation lookup failed",
			zap.String("sha256", hash), zap.Error(err))
		return core.AttachmentScanResult{Err: err.Error()}
	}
	return result
}

// AnalyzeTextLocal runs the configured advisory model over message text.
func (s *Service) AnalyzeTextLocal(ctx context.Context, text string) core.AdvisorResult {
	if s.advisor == nil {
		return core.AdvisorResult{Explanation: "no local advisory model configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := &core.Message{Body: text}
	result, err := s.advisor.Analyze(ctx, msg)
	if err != nil {
		s.logger.Warn("Local advisory analysis failed", zap.Error(err))
		return core.AdvisorResult{Explanation: err.Error()}
	}
	return *result
}

// checkURL classifies one URL. Without external API credentials the check
// is an offline heuristic over host and path markers.
func (s *Service) checkURL(ctx context.Context, raw string) core.URLCheckResult {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return core.URLCheckResult{SafeBrowsing: core.StatusError, PhishTank: core.StatusError}
	}
	if ctx.Err() != nil {
		return core.URLCheckResult{SafeBrowsing: core.StatusError, PhishTank: core.StatusError}
	}

	status := core.StatusClean
	target := strings.ToLower(parsed.Host + parsed.Path)
	for _, marker := range suspiciousURLMarkers {
		if strings.Contains(target, marker) {
			status = core.StatusSuspicious
			break
		}
	}

	return core.URLCheckResult{SafeBrowsing: status, PhishTank: status}
}

// dnsblStatus queries one DNSBL zone for a domain.
func (s *Service) dnsblStatus(ctx context.Context, domain, zone string) string {
	query := domain + "." + zone
	addrs, err := s.resolver.LookupHost(ctx, query)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return core.StatusClean
		}
		s.logger.Debug("DNSBL lookup failed", zap.String("query", query), zap.Error(err))
		return core.StatusError
	}
	if len(addrs) > 0 {
		return core.StatusBlacklisted
	}
	return core.StatusClean
}

// virusTotalLookup queries the VirusTotal v3 file endpoint for a hash.
func (s *Service) virusTotalLookup(ctx context.Context, hash string) (core.AttachmentScanResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, virusTotalFileURL+hash, nil)
	if err != nil {
		return core.AttachmentScanResult{}, err
	}
	req.Header.Set("x-apikey", s.cfg.VirusTotalAPIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return core.AttachmentScanResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return core.AttachmentScanResult{Err: "hash not known to reputation service"}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return core.AttachmentScanResult{}, fmt.Errorf("reputation service returned status %d", resp.StatusCode)
	}

	var payload struct {
		Data struct {
			Attributes struct {
				LastAnalysisStats struct {
					Malicious  int `json:"malicious"`
					Suspicious int `json:"suspicious"`
					Harmless   int `json:"harmless"`
					Undetected int `json:"undetected"`
				} `json:"last_analysis_stats"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return core.AttachmentScanResult{}, fmt.Errorf("failed to decode reputation response: %w", err)
	}

	stats := payload.Data.Attributes.LastAnalysisStats
	return core.AttachmentScanResult{
		Malicious:  stats.Malicious,
		Suspicious: stats.Suspicious,
		Clean:      stats.Harmless + stats.Undetected,
	}, nil
}

// hashFile streams a file through SHA-256.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
