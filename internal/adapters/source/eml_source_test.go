package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const simpleEML = `From: bank@alert.xyz
To: opfer@firma.example
Subject: Konto gesperrt
Date: Mon, 02 Jun 2025 10:30:00 +0200

Bitte klicken Sie hier: http://alert.xyz/login
`

const multipartEML = `From: absender@firma.example
Subject: Rechnung
Content-Type: multipart/mixed; boundary="xyz"

--xyz
Content-Type: text/plain

Anbei die Rechnung.
--xyz
Content-Type: application/octet-stream
Content-Disposition: attachment; filename="rechnung.exe"

aGVsbG8=
--xyz--
`

func writeEML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseEMLFile(t *testing.T) {
	path := writeEML(t, t.TempDir(), "mail.eml", simpleEML)

	msg, err := ParseEMLFile(path)
	require.NoError(t, err)

	assert.Equal(t, "bank@alert.xyz", msg.Sender)
	assert.Equal(t, "Konto gesperrt", msg.Subject)
	assert.Contains(t, msg.Body, "http://alert.xyz/login")
	assert.Equal(t, 2025, msg.Timestamp.Year())
	assert.Empty(t, msg.Attachments)
}

func TestParseEMLFileAttachments(t *testing.T) {
	path := writeEML(t, t.TempDir(), "mail.eml", multipartEML)

	msg, err := ParseEMLFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"rechnung.exe"}, msg.Attachments)
}

func TestParseEMLFileInvalid(t *testing.T) {
	path := writeEML(t, t.TempDir(), "kaputt.eml", "kein header")

	_, err := ParseEMLFile(path)
	assert.Error(t, err)
}

func TestEMLSourceFetch(t *testing.T) {
	dir := t.TempDir()
	writeEML(t, dir, "b.eml", simpleEML)
	writeEML(t, dir, "a.eml", multipartEML)
	writeEML(t, dir, "notiz.txt", "ignoriert")
	writeEML(t, dir, "kaputt.eml", "kein header")

	s := NewEMLSource(dir, zap.NewNop())
	require.NoError(t, s.Connect())

	messages, err := s.Fetch(10)
	require.NoError(t, err)

	// Lexical order, non-eml files ignored, broken files skipped.
	require.Len(t, messages, 2)
	assert.Equal(t, "Rechnung", messages[0].Subject)
	assert.Equal(t, "Konto gesperrt", messages[1].Subject)
}

func TestEMLSourceFetchLimit(t *testing.T) {
	dir := t.TempDir()
	writeEML(t, dir, "a.eml", simpleEML)
	writeEML(t, dir, "b.eml", simpleEML)

	s := NewEMLSource(dir, zap.NewNop())
	messages, err := s.Fetch(1)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestEMLSourceConnectMissingDir(t *testing.T) {
	s := NewEMLSource(filepath.Join(t.TempDir(), "fehlt"), zap.NewNop())
	assert.Error(t, s.Connect())
}
