package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mail-analyzer/")
	v.AddConfigPath("$HOME/.mail-analyzer")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_ANALYZER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Message source defaults
	v.SetDefault("source.type", "imap")
	v.SetDefault("source.max_messages", 50)
	v.SetDefault("source.scan_interval", "5m")
	v.SetDefault("source.eml_dir", "./inbox")

	// IMAP defaults
	v.SetDefault("imap.address", "imap.example.com:993")
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.mailbox", "INBOX")

	// SMTP gateway defaults
	v.SetDefault("smtp.listen_address", "0.0.0.0:10025")
	v.SetDefault("smtp.domain", "localhost")
	v.SetDefault("smtp.max_message_bytes", 30*1024*1024)
	v.SetDefault("smtp.queue_size", 256)

	// Advisor (local AI) defaults
	v.SetDefault("advisor.provider", "openai")
	v.SetDefault("advisor.enabled", false)

	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.1)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 4096)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", "gemini-pro")
	v.SetDefault("gemini.max_tokens", 1000)
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("gemini.top_p", 0.9)
	v.SetDefault("gemini.max_body_size", 4096)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "") // set to an Ollama/DeepSeek endpoint for local models
	v.SetDefault("openai.model_name", "gpt-4")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("openai.top_p", 0.9)
	v.SetDefault("openai.max_body_size", 4096)

	// Model store defaults
	v.SetDefault("store.type", "file")
	v.SetDefault("store.dir", "./models")
	v.SetDefault("store.sqlite_path", "./models/artifacts.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/mail_analyzer")

	// Analysis defaults
	v.SetDefault("analysis.dedupe_indicators", false)
	v.SetDefault("analysis.enable_intel", false)
	v.SetDefault("analysis.cluster_contribution", 2.0)
	v.SetDefault("analysis.fusion.rule_based", 0.4)
	v.SetDefault("analysis.fusion.ml", 0.2)
	v.SetDefault("analysis.fusion.ml_low_confidence", 0.1)
	v.SetDefault("analysis.fusion.ml_confidence_gate", 0.7)
	v.SetDefault("analysis.fusion.context", 0.2)
	v.SetDefault("analysis.fusion.cluster", 0.1)

	// ML defaults
	v.SetDefault("ml.max_features", 1000)
	v.SetDefault("ml.retrain_every", 10)
	v.SetDefault("ml.min_samples", 10)

	// Feedback learner defaults
	v.SetDefault("feedback.min_samples", 50)
	v.SetDefault("feedback.retrain_every", 10)
	v.SetDefault("feedback.original_weight", 0.7)
	v.SetDefault("feedback.feedback_weight", 0.3)
	v.SetDefault("feedback.feedback_scale", 10.0)
	v.SetDefault("feedback.confidence_threshold", 0.8)
	v.SetDefault("feedback.high_confidence_threshold", 0.9)

	// Cluster defaults
	v.SetDefault("cluster.eps", 0.3)
	v.SetDefault("cluster.min_samples", 3)
	v.SetDefault("cluster.max_history", 1000)

	// Threat intelligence defaults
	v.SetDefault("intel.workers", 5)
	v.SetDefault("intel.timeout", "10s")
	v.SetDefault("intel.virustotal_api_key", "")

	// Rule tables
	setRuleDefaults(v)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// setRuleDefaults sets the keyword, extension, TLD and weight tables used
// by the rule-based scorer.
func setRuleDefaults(v *viper.Viper) {
	v.SetDefault("rules.keywords.high_risk", []string{
		"password", "passwort", "konto", "account", "bank", "verify", "verifizieren",
		"urgent", "dringend", "immediate", "sofort", "lawsuit", "klage",
		"inheritance", "erbe", "winner", "gewinner", "bitcoin", "wallet",
	})
	v.SetDefault("rules.keywords.medium_risk", []string{
		"update", "aktualisierung", "security", "sicherheit", "support",
		"invoice", "rechnung", "payment", "zahlung", "überweisen",
		"subscription", "abonnement", "trial", "testversion",
	})
	v.SetDefault("rules.keywords.low_risk", []string{
		"newsletter", "angebot", "offer", "sale", "rabatt",
		"confirmation", "bestätigung", "reminder", "erinnerung",
	})

	v.SetDefault("rules.extensions.high_risk", []string{
		".exe", ".bat", ".cmd", ".scr", ".js", ".vbs", ".ps1", ".msi", ".reg",
	})
	v.SetDefault("rules.extensions.medium_risk", []string{
		".zip", ".rar", ".7z", ".iso", ".jar", ".msc",
	})
	v.SetDefault("rules.extensions.low_risk", []string{
		".pdf", ".doc", ".docx", ".xls", ".xlsx",
	})

	v.SetDefault("rules.suspicious_tlds", []string{
		".xyz", ".top", ".work", ".date", ".loan", ".agency", ".guru",
		".win", ".pro", ".stream", ".gdn", ".bid", ".click",
	})

	v.SetDefault("rules.urgency_terms", []string{
		"sofort", "dringend", "eilig", "wichtig", "warnung", "jetzt",
	})

	v.SetDefault("rules.weights.sender.suspicious_domain", 2.0)
	v.SetDefault("rules.weights.sender.spoofed_display_name", 2.5)
	v.SetDefault("rules.weights.subject.high_risk_keyword", 2.0)
	v.SetDefault("rules.weights.subject.medium_risk_keyword", 1.5)
	v.SetDefault("rules.weights.subject.low_risk_keyword", 0.5)
	v.SetDefault("rules.weights.body.high_risk_keyword", 1.5)
	v.SetDefault("rules.weights.body.medium_risk_keyword", 1.0)
	v.SetDefault("rules.weights.body.low_risk_keyword", 0.3)
	v.SetDefault("rules.weights.body.suspicious_url", 2.0)
	v.SetDefault("rules.weights.body.multiple_urls", 1.0)
	v.SetDefault("rules.weights.body.urgent_language", 1.5)
	v.SetDefault("rules.weights.attachments.high_risk_extension", 3.0)
	v.SetDefault("rules.weights.attachments.medium_risk_extension", 2.0)
	v.SetDefault("rules.weights.attachments.low_risk_extension", 0.5)
	v.SetDefault("rules.weights.attachments.multiple_attachments", 1.0)
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
