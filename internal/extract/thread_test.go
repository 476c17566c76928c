package extract

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/gmail-notifier/internal/model"
)

var utc8 = time.FixedZone("UTC+8", 8*3600)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(b)
}

func TestExtractThread_PlainText(t *testing.T) {
	detail, err := ExtractThreadIn(readFixture(t, "thread-plaintext.html"), "", utc8)
	require.NoError(t, err)

	assert.Equal(t, "Test Text", detail.Subject)
	assert.Equal(t, 1, detail.MessageCount)
	require.Len(t, detail.Messages, 1)

	msg := detail.Messages[0]
	assert.Equal(t, "璃 琉", msg.SenderName)
	assert.Equal(t, "rxliuli@outlook.com", msg.SenderEmail)
	assert.Equal(t, "2025-06-03T05:42:00.000Z", msg.Time)
	assert.Equal(t, []string{"rxliuli@gmail.com"}, msg.To)
	assert.Equal(t, []string{}, msg.Cc)
	assert.Empty(t, msg.ReplyTo)
	assert.Contains(t, msg.ContentHTML, "Test PlainText")
	assert.Equal(t, "Test PlainText", msg.ContentText)
	assert.Nil(t, msg.Attachments)
}

func TestExtractThread_HTMLBodyAndRecipients(t *testing.T) {
	detail, err := ExtractThreadIn(readFixture(t, "thread-html.html"), "", utc8)
	require.NoError(t, err)

	assert.Equal(t, "Test HTML", detail.Subject)
	require.Len(t, detail.Messages, 1)

	msg := detail.Messages[0]
	assert.Equal(t, "2025-06-03T09:48:00.000Z", msg.Time)
	assert.Contains(t, msg.ContentHTML, "<i>Hello</i>")
	assert.Contains(t, msg.ContentHTML, "<b>World</b>")
	assert.Equal(t, "Hello World", msg.ContentText)
	assert.Equal(t, []string{"Liuli <rxliuli@gmail.com>", "Team <team@example.com>"}, msg.To)
	assert.Equal(t, []string{"ops@example.com", "audit@example.com"}, msg.Cc)
	assert.Equal(t, "noreply <noreply@example.com>", msg.ReplyTo)
}

func TestExtractThread_RebasesImages(t *testing.T) {
	const base = "https://mail.google.com/mail/u/0"
	detail, err := ExtractThreadIn(readFixture(t, "thread-image.html"), base, utc8)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 1)

	html := detail.Messages[0].ContentHTML
	assert.Contains(t, html, `<div style="overflow-x: auto;"><img src="https://mail.google.com/mail/u/0?ui=2&amp;ik=abc123&amp;attid=0.1&amp;view=fimg"`)
	assert.Contains(t, html, `<div style="color: red; overflow-x: auto;"><img src="https://mail.google.com/mail/u/0?ui=2&amp;ik=abc123&amp;attid=0.2&amp;view=fimg"`)
	assert.Contains(t, html, `<p><img src="https://example.com/logo.png"`)
	assert.Contains(t, html, `<img src="?ui=2&amp;t=pixel" width="1" height="1"/>`)
}

func TestExtractThread_WithoutBaseURLKeepsRelativeImages(t *testing.T) {
	detail, err := ExtractThreadIn(readFixture(t, "thread-image.html"), "", utc8)
	require.NoError(t, err)

	html := detail.Messages[0].ContentHTML
	assert.Contains(t, html, `<div style="overflow-x: auto;"><img src="?ui=2&amp;ik=abc123&amp;attid=0.1&amp;view=fimg"`)
}

func TestExtractThread_Attachments(t *testing.T) {
	detail, err := ExtractThreadIn(readFixture(t, "thread-attachment.html"), "", utc8)
	require.NoError(t, err)

	assert.Equal(t, "Quarterly report", detail.Subject)
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, []model.Attachment{
		{FileName: "report.pdf", URL: "https://example.com/files/report.pdf"},
		{FileName: "https://example.com/files/data.XLSX?dl=1", URL: "https://example.com/files/data.XLSX?dl=1"},
	}, detail.Messages[0].Attachments)
}

func TestExtractThread_ElidedMessages(t *testing.T) {
	detail, err := ExtractThreadIn(readFixture(t, "thread-elided.html"), "", utc8)
	require.NoError(t, err)

	assert.Equal(t, "Re: Planning", detail.Subject)
	assert.Equal(t, 5, detail.MessageCount)
	assert.Len(t, detail.Messages, 3)
	assert.LessOrEqual(t, len(detail.Messages), detail.MessageCount)

	senders := make([]string, 0, len(detail.Messages))
	for _, m := range detail.Messages {
		senders = append(senders, m.SenderEmail)
	}
	assert.Equal(t, []string{"alice@example.com", "me@example.com", "bob@example.com"}, senders)
	assert.Equal(t, "2025-07-30T09:05:00.000Z", detail.Messages[2].Time)
	assert.Equal(t, "Last", detail.Messages[2].ContentText)
}

func TestExtractThread_BadTimestampFailsWholeThread(t *testing.T) {
	text := `<html><body><table class="message"><tr><td><b>A</b> &lt;a@example.com&gt;</td><td align="right"><font size="-1">yesterday</font></td></tr></table></body></html>`

	_, err := ExtractThreadIn(text, "", utc8)
	assert.ErrorIs(t, err, ErrDateParse)
}

func TestExtractThread_EmptyPage(t *testing.T) {
	detail, err := ExtractThread("<html></html>", "")
	require.NoError(t, err)
	assert.Equal(t, "", detail.Subject)
	assert.Equal(t, 0, detail.MessageCount)
	assert.Empty(t, detail.Messages)
}
