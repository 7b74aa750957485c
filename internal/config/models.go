package config

// TierTable partitions keywords or extensions by risk tier.
type TierTable struct {
	HighRisk   []string
	MediumRisk []string
	LowRisk    []string
}

// RuleWeights maps each (category, tier) pair to its score contribution.
type RuleWeights struct {
	SenderSuspiciousDomain    float64
	SenderSpoofedDisplayName  float64
	SubjectHighRiskKeyword    float64
	SubjectMediumRiskKeyword  float64
	SubjectLowRiskKeyword     float64
	BodyHighRiskKeyword       float64
	BodyMediumRiskKeyword     float64
	BodyLowRiskKeyword        float64
	BodySuspiciousURL         float64
	BodyMultipleURLs          float64
	BodyUrgentLanguage        float64
	AttachmentHighRiskExt     float64
	AttachmentMediumRiskExt   float64
	AttachmentLowRiskExt      float64
	AttachmentMultipleWeights float64
}

// RulesConfig is the full rule-based scorer configuration.
type RulesConfig struct {
	Keywords       TierTable
	Extensions     TierTable
	SuspiciousTLDs []string
	UrgencyTerms   []string
	Weights        RuleWeights
}

// GetRules returns the rule-based scorer configuration.
func (c *Config) GetRules() RulesConfig {
	return RulesConfig{
		Keywords: TierTable{
			HighRisk:   c.GetStringSlice("rules.keywords.high_risk"),
			MediumRisk: c.GetStringSlice("rules.keywords.medium_risk"),
			LowRisk:    c.GetStringSlice("rules.keywords.low_risk"),
		},
		Extensions: TierTable{
			HighRisk:   c.GetStringSlice("rules.extensions.high_risk"),
			MediumRisk: c.GetStringSlice("rules.extensions.medium_risk"),
			LowRisk:    c.GetStringSlice("rules.extensions.low_risk"),
		},
		SuspiciousTLDs: c.GetStringSlice("rules.suspicious_tlds"),
		UrgencyTerms:   c.GetStringSlice("rules.urgency_terms"),
		Weights: RuleWeights{
			SenderSuspiciousDomain:    c.GetFloat64("rules.weights.sender.suspicious_domain"),
			SenderSpoofedDisplayName:  c.GetFloat64("rules.weights.sender.spoofed_display_name"),
			SubjectHighRiskKeyword:    c.GetFloat64("rules.weights.subject.high_risk_keyword"),
			SubjectMediumRiskKeyword:  c.GetFloat64("rules.weights.subject.medium_risk_keyword"),
			SubjectLowRiskKeyword:     c.GetFloat64("rules.weights.subject.low_risk_keyword"),
			BodyHighRiskKeyword:       c.GetFloat64("rules.weights.body.high_risk_keyword"),
			BodyMediumRiskKeyword:     c.GetFloat64("rules.weights.body.medium_risk_keyword"),
			BodyLowRiskKeyword:        c.GetFloat64("rules.weights.body.low_risk_keyword"),
			BodySuspiciousURL:         c.GetFloat64("rules.weights.body.suspicious_url"),
			BodyMultipleURLs:          c.GetFloat64("rules.weights.body.multiple_urls"),
			BodyUrgentLanguage:        c.GetFloat64("rules.weights.body.urgent_language"),
			AttachmentHighRiskExt:     c.GetFloat64("rules.weights.attachments.high_risk_extension"),
			AttachmentMediumRiskExt:   c.GetFloat64("rules.weights.attachments.medium_risk_extension"),
			AttachmentLowRiskExt:      c.GetFloat64("rules.weights.attachments.low_risk_extension"),
			AttachmentMultipleWeights: c.GetFloat64("rules.weights.attachments.multiple_attachments"),
		},
	}
}

// FusionWeights is the weight table applied when combining sub-scores.
type FusionWeights struct {
	RuleBased        float64
	ML               float64
	MLLowConfidence  float64
	MLConfidenceGate float64
	Context          float64
	Cluster          float64
}

// AnalysisConfig configures the fusion orchestrator.
type AnalysisConfig struct {
	DedupeIndicators    bool
	EnableIntel         bool
	ClusterContribution float64
	Fusion              FusionWeights
}

// GetAnalysis returns the fusion orchestrator configuration.
func (c *Config) GetAnalysis() AnalysisConfig {
	return AnalysisConfig{
		DedupeIndicators:    c.GetBool("analysis.dedupe_indicators"),
		EnableIntel:         c.GetBool("analysis.enable_intel"),
		ClusterContribution: c.GetFloat64("analysis.cluster_contribution"),
		Fusion: FusionWeights{
			RuleBased:        c.GetFloat64("analysis.fusion.rule_based"),
			ML:               c.GetFloat64("analysis.fusion.ml"),
			MLLowConfidence:  c.GetFloat64("analysis.fusion.ml_low_confidence"),
			MLConfidenceGate: c.GetFloat64("analysis.fusion.ml_confidence_gate"),
			Context:          c.GetFloat64("analysis.fusion.context"),
			Cluster:          c.GetFloat64("analysis.fusion.cluster"),
		},
	}
}

// MLConfig configures the learned classifier.
type MLConfig struct {
	MaxFeatures  int
	RetrainEvery int
	MinSamples   int
}

// GetML returns the learned classifier configuration.
func (c *Config) GetML() MLConfig {
	return MLConfig{
		MaxFeatures:  c.GetInt("ml.max_features"),
		RetrainEvery: c.GetInt("ml.retrain_every"),
		MinSamples:   c.GetInt("ml.min_samples"),
	}
}

// FeedbackConfig configures the feedback learner.
type FeedbackConfig struct {
	MinSamples              int
	RetrainEvery            int
	OriginalWeight          float64
	FeedbackWeight          float64
	FeedbackScale           float64
	ConfidenceThreshold     float64
	HighConfidenceThreshold float64
}

// GetFeedback returns the feedback learner configuration.
func (c *Config) GetFeedback() FeedbackConfig {
	return FeedbackConfig{
		MinSamples:              c.GetInt("feedback.min_samples"),
		RetrainEvery:            c.GetInt("feedback.retrain_every"),
		OriginalWeight:          c.GetFloat64("feedback.original_weight"),
		FeedbackWeight:          c.GetFloat64("feedback.feedback_weight"),
		FeedbackScale:           c.GetFloat64("feedback.feedback_scale"),
		ConfidenceThreshold:     c.GetFloat64("feedback.confidence_threshold"),
		HighConfidenceThreshold: c.GetFloat64("feedback.high_confidence_threshold"),
	}
}

// ClusterConfig configures the pattern cluster detector.
type ClusterConfig struct {
	Eps        float64
	MinSamples int
	MaxHistory int
}

// GetCluster returns the cluster detector configuration.
func (c *Config) GetCluster() ClusterConfig {
	return ClusterConfig{
		Eps:        c.GetFloat64("cluster.eps"),
		MinSamples: c.GetInt("cluster.min_samples"),
		MaxHistory: c.GetInt("cluster.max_history"),
	}
}

// IntelConfig configures the threat-intelligence collaborator.
type IntelConfig struct {
	Workers          int
	Timeout          string
	VirusTotalAPIKey string
}

// GetIntel returns the threat-intelligence configuration.
func (c *Config) GetIntel() IntelConfig {
	return IntelConfig{
		Workers:          c.GetInt("intel.workers"),
		Timeout:          c.GetString("intel.timeout"),
		VirusTotalAPIKey: c.GetString("intel.virustotal_api_key"),
	}
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI-compatible endpoints
// (including local Ollama or DeepSeek servers via BaseURL).
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// IMAPConfig configures the IMAP message source.
type IMAPConfig struct {
	Address  string
	Username string
	Password string
	Mailbox  string
}

// GetIMAP returns the IMAP source configuration.
func (c *Config) GetIMAP() IMAPConfig {
	return IMAPConfig{
		Address:  c.GetString("imap.address"),
		Username: c.GetString("imap.username"),
		Password: c.GetString("imap.password"),
		Mailbox:  c.GetString("imap.mailbox"),
	}
}

// SMTPConfig configures the inbound SMTP gateway source.
type SMTPConfig struct {
	ListenAddress   string
	Domain          string
	MaxMessageBytes int
	QueueSize       int
}

// GetSMTP returns the SMTP gateway configuration.
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		ListenAddress:   c.GetString("smtp.listen_address"),
		Domain:          c.GetString("smtp.domain"),
		MaxMessageBytes: c.GetInt("smtp.max_message_bytes"),
		QueueSize:       c.GetInt("smtp.queue_size"),
	}
}
