package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/adapters/source"
	"github.com/AureliusCaelum/mail-analyzer/internal/adapters/store"
	"github.com/AureliusCaelum/mail-analyzer/internal/analyzer"
	"github.com/AureliusCaelum/mail-analyzer/internal/cluster"
	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/contextaware"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
	"github.com/AureliusCaelum/mail-analyzer/internal/logging"
	"github.com/AureliusCaelum/mail-analyzer/internal/ml"
	"github.com/AureliusCaelum/mail-analyzer/internal/rules"
	"github.com/AureliusCaelum/mail-analyzer/internal/trafficlight"
	"github.com/AureliusCaelum/mail-analyzer/internal/trend"
)

var (
	inputFile  = flag.String("file", "", "Input .eml file (use stdin if not specified)")
	storeDir   = flag.String("store-dir", "", "Model store directory (in-memory store if not specified)")
	department = flag.String("department", "", "Department of the mailbox owner")
	role       = flag.String("role", "", "Role of the mailbox owner")
	clearance  = flag.Int("clearance", 0, "Clearance level of the mailbox owner (1-5)")
	contacts   = flag.String("contacts", "", "Comma-separated list of known contacts")
	noColor    = flag.Bool("no-color", false, "Disable colored output")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.NewFromViper(config.NewEmptyViper())

	modelStore, err := buildStore(logger)
	if err != nil {
		logger.Fatal("Failed to create model store", zap.Error(err))
	}

	threatAnalyzer := analyzer.NewThreatAnalyzer(
		cfg.GetAnalysis(),
		rules.NewScorer(cfg.GetRules(), logger),
		ml.NewAnalyzer(cfg.GetML(), modelStore, logger),
		ml.NewFeedbackLearner(cfg.GetFeedback(), modelStore, logger),
		contextaware.NewAnalyzer(modelStore, logger),
		cluster.NewAnalyzer(cfg.GetCluster(), modelStore, logger),
		trend.NewEngine(logger),
		nil,
		logger,
	)

	msg, err := readMessage(logger)
	if err != nil {
		logger.Fatal("Failed to read message", zap.Error(err))
	}

	start := time.Now()
	verdict := threatAnalyzer.AnalyzeMessage(msg, userContext())
	duration := time.Since(start)

	renderVerdict(msg, verdict, duration)
}

// buildStore selects a file-backed or in-memory model store.
func buildStore(logger *zap.Logger) (core.ModelStore, error) {
	if *storeDir == "" {
		return store.NewMemoryStore(), nil
	}
	return store.NewFileStore(*storeDir, logger)
}

// readMessage parses the input .eml file or stdin.
func readMessage(logger *zap.Logger) (*core.Message, error) {
	if *inputFile != "" {
		logger.Info("Reading message from file", zap.String("file", *inputFile))
		return source.ParseEMLFile(*inputFile)
	}

	logger.Info("Reading message from stdin")
	parsed, err := mail.ReadMessage(bufio.NewReader(os.Stdin))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	body, err := io.ReadAll(parsed.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}

	msg := &core.Message{
		Sender:  parsed.Header.Get("From"),
		Subject: parsed.Header.Get("Subject"),
		Body:    string(body),
	}
	if date, err := parsed.Header.Date(); err == nil {
		msg.Timestamp = date
	}
	return msg, nil
}

// userContext builds the optional user context from flags.
func userContext() *core.UserContext {
	if *department == "" && *role == "" && *clearance == 0 && *contacts == "" {
		return nil
	}

	uc := &core.UserContext{
		Department:     *department,
		Role:           *role,
		ClearanceLevel: *clearance,
	}
	if *contacts != "" {
		for _, contact := range strings.Split(*contacts, ",") {
			if trimmed := strings.TrimSpace(contact); trimmed != "" {
				uc.CommonContacts = append(uc.CommonContacts, trimmed)
			}
		}
	}
	return uc
}

// renderVerdict prints the analysis report.
func renderVerdict(msg *core.Message, verdict *core.Verdict, duration time.Duration) {
	renderer := trafficlight.NewRenderer(!*noColor)

	fmt.Printf("\n=== Threat Analysis ===\n")
	fmt.Print(renderer.Render(msg, verdict))
	fmt.Printf("\nML confidence: %.2f\n", verdict.MLConfidence)
	if verdict.Trend != nil {
		if short, ok := verdict.Trend.Windows["short"]; ok {
			fmt.Printf("Threats seen in last 24h: %d\n", short.TotalThreats)
		}
	}
	fmt.Printf("Processing time: %v\n", duration)
}
