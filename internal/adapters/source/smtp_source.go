package source

import (
	"bytes"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

// SMTPSource is an inbound SMTP gateway implementation of the
// MessageSource interface. Mail submitted by an upstream MTA is queued in
// memory and drained by Fetch. When the queue is full new messages are
// rejected with a temporary error so the MTA retries.
type SMTPSource struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
	server *smtp.Server
	queue  chan core.Message
}

// NewSMTPSource creates a new SMTP gateway source
func NewSMTPSource(cfg config.SMTPConfig, logger *zap.Logger) *SMTPSource {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	return &SMTPSource{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan core.Message, queueSize),
	}
}

// Name identifies the provider for logging
func (s *SMTPSource) Name() string {
	return "smtp"
}

// Connect starts the SMTP server in a goroutine
func (s *SMTPSource) Connect() error {
	s.server = smtp.NewServer(&smtpBackend{source: s})
	s.server.Addr = s.cfg.ListenAddress
	s.server.Domain = s.cfg.Domain
	s.server.ReadTimeout = 30 * time.Second
	s.server.WriteTimeout = 30 * time.Second
	s.server.MaxMessageBytes = int64(s.cfg.MaxMessageBytes)
	s.server.MaxRecipients = 50
	s.server.AllowInsecureAuth = true

	s.logger.Info("SMTP gateway starting", zap.String("address", s.cfg.ListenAddress))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != smtp.ErrServerClosed {
			s.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Disconnect stops the SMTP server
func (s *SMTPSource) Disconnect() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// Fetch drains up to maxCount queued messages without blocking
func (s *SMTPSource) Fetch(maxCount int) ([]core.Message, error) {
	var messages []core.Message
	for maxCount <= 0 || len(messages) < maxCount {
		select {
		case msg := <-s.queue:
			messages = append(messages, msg)
		default:
			return messages, nil
		}
	}
	return messages, nil
}

// enqueue adds a received message to the queue
func (s *SMTPSource) enqueue(msg core.Message) error {
	select {
	case s.queue <- msg:
		return nil
	default:
		return &smtp.SMTPError{
			Code:    451,
			Message: "analysis queue full, try again later",
		}
	}
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	source *SMTPSource
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{source: b.source}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	source *SMTPSource
	sender string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
}

// Logout releases the session
func (s *smtpSession) Logout() error {
	return nil
}

// AuthPlain handles PLAIN authentication, which the gateway does not use
func (s *smtpSession) AuthPlain(_, _ string) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the envelope sender
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt accepts any recipient; the gateway analyzes rather than delivers
func (s *smtpSession) Rcpt(_ string, _ *smtp.RcptOptions) error {
	return nil
}

// Data parses the submitted message and queues it for analysis
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.source.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		s.source.logger.Error("Failed to parse message", zap.Error(err))
		return fmt.Errorf("failed to parse message: %w", err)
	}

	body, err := io.ReadAll(parsed.Body)
	if err != nil {
		s.source.logger.Error("Failed to read message body", zap.Error(err))
		return err
	}

	msg := core.Message{
		Sender:    headerOr(parsed.Header.Get("From"), s.sender),
		Subject:   parsed.Header.Get("Subject"),
		Body:      string(body),
		Timestamp: time.Now(),
	}
	if date, err := parsed.Header.Date(); err == nil {
		msg.Timestamp = date
	}
	msg.Attachments = attachmentNames(parsed.Header.Get("Content-Type"), string(body))

	if err := s.source.enqueue(msg); err != nil {
		s.source.logger.Warn("Dropped inbound message, queue full",
			zap.String("sender", msg.Sender))
		return err
	}

	s.source.logger.Debug("Queued inbound message",
		zap.String("sender", msg.Sender),
		zap.String("subject", msg.Subject))
	return nil
}

func headerOr(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
