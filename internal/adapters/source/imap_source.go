// Package source provides the message source adapters: IMAP mailboxes, an
// inbound SMTP gateway and local .eml directories. All adapters normalize
// provider data into the engine's message record.
package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/AureliusCaelum/mail-analyzer/internal/config"
	"github.com/AureliusCaelum/mail-analyzer/internal/core"
)

// IMAPSource is an IMAP implementation of the MessageSource interface
type IMAPSource struct {
	cfg    config.IMAPConfig
	logger *zap.Logger
	client *client.Client
}

// NewIMAPSource creates a new IMAP message source
func NewIMAPSource(cfg config.IMAPConfig, logger *zap.Logger) *IMAPSource {
	return &IMAPSource{cfg: cfg, logger: logger}
}

// Name identifies the provider for logging
func (s *IMAPSource) Name() string {
	return "imap"
}

// Connect dials the IMAP server over TLS and logs in
func (s *IMAPSource) Connect() error {
	c, err := client.DialTLS(s.cfg.Address, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	s.client = c
	s.logger.Info("Connected to IMAP server", zap.String("address", s.cfg.Address))
	return nil
}

// Disconnect logs out and releases the session
func (s *IMAPSource) Disconnect() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Logout()
	s.client = nil
	return err
}

// Fetch retrieves up to maxCount of the most recent messages from the
// configured mailbox. Messages that cannot be parsed are skipped.
func (s *IMAPSource) Fetch(maxCount int) ([]core.Message, error) {
	if s.client == nil {
		return nil, fmt.Errorf("not connected to IMAP server")
	}

	mbox, err := s.client.Select(s.cfg.Mailbox, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %q: %w", s.cfg.Mailbox, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	from := uint32(1)
	if maxCount > 0 && mbox.Messages > uint32(maxCount) {
		from = mbox.Messages - uint32(maxCount) + 1
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, mbox.Messages)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope}

	ch := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqSet, items, ch)
	}()

	var messages []core.Message
	for msg := range ch {
		parsed, ok := s.parseMessage(msg, section)
		if ok {
			messages = append(messages, parsed)
		}
	}
	if err := <-done; err != nil {
		return messages, fmt.Errorf("failed to fetch messages: %w", err)
	}

	s.logger.Debug("Fetched messages from mailbox",
		zap.String("mailbox", s.cfg.Mailbox),
		zap.Int("count", len(messages)))
	return messages, nil
}

// parseMessage converts one fetched IMAP message into the engine's record.
func (s *IMAPSource) parseMessage(msg *imap.Message, section *imap.BodySectionName) (core.Message, bool) {
	var out core.Message

	if msg.Envelope != nil {
		out.Subject = msg.Envelope.Subject
		out.Timestamp = msg.Envelope.Date
		if len(msg.Envelope.From) > 0 {
			addr := msg.Envelope.From[0]
			out.Sender = fmt.Sprintf("%s@%s", addr.MailboxName, addr.HostName)
			if addr.PersonalName != "" {
				out.Sender = fmt.Sprintf("%s <%s>", addr.PersonalName, out.Sender)
			}
		}
	}

	r := msg.GetBody(section)
	if r == nil {
		return out, out.Subject != "" || out.Sender != ""
	}

	mr, err := gomail.CreateReader(r)
	if err != nil {
		s.logger.Warn("Failed to parse message body", zap.Error(err))
		return out, true
	}

	body, attachments := readParts(mr, s.logger)
	out.Body = body
	out.Attachments = attachments
	if out.Timestamp.IsZero() {
		if date, err := mr.Header.Date(); err == nil {
			out.Timestamp = date
		}
	}
	return out, true
}

// readParts walks the MIME parts collecting text content and attachment
// file names.
func readParts(mr *gomail.Reader, logger *zap.Logger) (string, []string) {
	var body strings.Builder
	var attachments []string

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Debug("Failed to read message part", zap.Error(err))
			break
		}

		switch h := part.Header.(type) {
		case *gomail.InlineHeader:
			contentType, _, _ := h.ContentType()
			if strings.HasPrefix(contentType, "text/plain") ||
				(strings.HasPrefix(contentType, "text/html") && body.Len() == 0) {
				if _, err := io.Copy(&body, part.Body); err != nil {
					logger.Debug("Failed to read text part", zap.Error(err))
				}
			}
		case *gomail.AttachmentHeader:
			if filename, err := h.Filename(); err == nil && filename != "" {
				attachments = append(attachments, filename)
			}
		}
	}

	return body.String(), attachments
}
