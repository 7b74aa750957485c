package source

import (
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

// EMLSource is a filesystem implementation of the MessageSource interface.
// It reads .eml files from a directory, useful for offline analysis and
// testing.
type EMLSource struct {
	dir    string
	logger *zap.Logger
}

// NewEMLSource creates a message source over a directory of .eml files
func NewEMLSource(dir string, logger *zap.Logger) *EMLSource {
	return &EMLSource{dir: dir, logger: logger}
}

// Name identifies the provider for logging
func (s *EMLSource) Name() string {
	return "eml"
}

// Connect verifies the directory exists
func (s *EMLSource) Connect() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("failed to open eml directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("eml path %q is not a directory", s.dir)
	}
	return nil
}

// Disconnect is a no-op for the filesystem source
func (s *EMLSource) Disconnect() error {
	return nil
}

// Fetch reads up to maxCount .eml files in lexical order. Unparseable
// files are skipped with a warning.
func (s *EMLSource) Fetch(maxCount int) ([]core.Message, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read eml directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(strings.ToLower(entry.Name()), ".eml") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	if maxCount > 0 && len(names) > maxCount {
		names = names[:maxCount]
	}

	var messages []core.Message
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		msg, err := ParseEMLFile(path)
		if err != nil {
			s.logger.Warn("Failed to parse eml file", zap.String("path", path), zap.Error(err))
			continue
		}
		messages = append(messages, *msg)
	}
	return messages, nil
}

// ParseEMLFile parses a single RFC 5322 message file.
func ParseEMLFile(path string) (*core.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open message file: %w", err)
	}
	defer f.Close()

	parsed, err := mail.ReadMessage(f)
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
	msg.Attachments = attachmentNames(parsed.Header.Get("Content-Type"), string(body))

	return msg, nil
}

// attachmentNames extracts attachment file names from multipart bodies by
// scanning Content-Disposition parameters. Full MIME decoding is left to
// the IMAP source; .eml files are trusted local input.
func attachmentNames(contentType, body string) []string {
	if !strings.Contains(strings.ToLower(contentType), "multipart") {
		return nil
	}

	var names []string
	for _, line := range strings.Split(body, "\n") {
		lower := strings.ToLower(line)
		idx := strings.Index(lower, "filename=")
		if idx < 0 {
			continue
		}
		name := strings.TrimSpace(line[idx+len("filename="):])
		name = strings.Trim(name, `"';`)
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
