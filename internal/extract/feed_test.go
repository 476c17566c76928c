package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/gmail-notifier/internal/model"
)

const feedHeader = `<?xml version="1.0" encoding="UTF-8"?><feed version="0.3" xmlns="http://purl.org/atom/ns#"><title>Gmail - Inbox for rxliuli@gmail.com</title><tagline>New messages in your Gmail Inbox</tagline>`

var testAuthor = model.Author{Name: "璃 琉", Email: "rxliuli@outlook.com"}

func TestExtractFeed_Empty(t *testing.T) {
	text := feedHeader + `<fullcount>0</fullcount><link rel="alternate" href="https://mail.google.com/mail/u/0" type="text/html"/><modified>2025-06-03T09:23:46Z</modified></feed>`

	info, err := ExtractFeed(text)
	require.NoError(t, err)
	assert.Equal(t, "rxliuli@gmail.com", info.Email)
	assert.Equal(t, "2025-06-03T09:23:46Z", info.ModifiedAt)
	assert.Equal(t, 0, info.FullCount)
	assert.NotNil(t, info.Entries)
	assert.Empty(t, info.Entries)
}

func TestExtractFeed_Entries(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		want  model.FeedEntry
	}{
		{
			name:  "plain text",
			entry: `<entry><title>Test Text</title><summary>Test PlainText</summary><link rel="alternate" href="https://mail.google.com/mail/u/1?account_id=rxliuli@gmail.com&amp;message_id=19734500f9fb78da&amp;view=conv&amp;extsrc=atom" type="text/html"/><modified>2025-06-03T05:42:31Z</modified><issued>2025-06-03T05:42:31Z</issued><id>tag:gmail.google.com,2004:1833885343766247642</id><author><name>璃 琉</name><email>rxliuli@outlook.com</email></author></entry>`,
			want: model.FeedEntry{
				Title:      "Test Text",
				Summary:    "Test PlainText",
				URL:        "https://mail.google.com/mail/u/1?account_id=rxliuli@gmail.com&message_id=19734500f9fb78da&view=conv&extsrc=atom",
				ModifiedAt: "2025-06-03T05:42:31Z",
				Author:     testAuthor,
			},
		},
		{
			name:  "empty summary",
			entry: `<entry><title>Test Image</title><summary></summary><link rel="alternate" href="https://mail.google.com/mail/u/0?account_id=rxliuli@gmail.com&amp;message_id=19734a32806f59c1&amp;view=conv&amp;extsrc=atom" type="text/html"/><modified>2025-06-03T07:13:17Z</modified><author><name>璃 琉</name><email>rxliuli@outlook.com</email></author></entry>`,
			want: model.FeedEntry{
				Title:      "Test Image",
				Summary:    "",
				URL:        "https://mail.google.com/mail/u/0?account_id=rxliuli@gmail.com&message_id=19734a32806f59c1&view=conv&extsrc=atom",
				ModifiedAt: "2025-06-03T07:13:17Z",
				Author:     testAuthor,
			},
		},
		{
			name:  "missing title and summary",
			entry: `<entry><link rel="alternate" href="https://mail.google.com/mail/u/0?message_id=abc" type="text/html"/><modified>2025-06-03T07:13:17Z</modified><author><name>Bob</name><email>bob@example.com</email></author></entry>`,
			want: model.FeedEntry{
				URL:        "https://mail.google.com/mail/u/0?message_id=abc",
				ModifiedAt: "2025-06-03T07:13:17Z",
				Author:     model.Author{Name: "Bob", Email: "bob@example.com"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := feedHeader + `<fullcount>1</fullcount><modified>2025-06-03T09:41:12Z</modified>` + tt.entry + `</feed>`

			info, err := ExtractFeed(text)
			require.NoError(t, err)
			assert.Equal(t, 1, info.FullCount)
			assert.Equal(t, []model.FeedEntry{tt.want}, info.Entries)
		})
	}
}

func TestExtractFeed_DocumentOrder(t *testing.T) {
	text := feedHeader + `<modified>2025-07-31T00:00:00Z</modified>` +
		`<entry><title>older</title><link href="https://mail.google.com/mail/u/0?message_id=a"/><modified>2025-07-29T21:05:12Z</modified><author><name>A</name><email>a@example.com</email></author></entry>` +
		`<entry><title>newer</title><link href="https://mail.google.com/mail/u/0?message_id=b"/><modified>2025-07-30T21:05:11Z</modified><author><name>B</name><email>b@example.com</email></author></entry>` +
		`</feed>`

	info, err := ExtractFeed(text)
	require.NoError(t, err)
	require.Len(t, info.Entries, 2)
	assert.Equal(t, "older", info.Entries[0].Title)
	assert.Equal(t, "newer", info.Entries[1].Title)
}

func TestExtractFeed_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{
			name:    "entry without link",
			text:    feedHeader + `<modified>2025-06-03T09:41:12Z</modified><entry><title>x</title><modified>2025-06-03T05:42:31Z</modified><author><name>A</name><email>a@example.com</email></author></entry></feed>`,
			wantErr: ErrMalformedFeedEntry,
		},
		{
			name:    "entry without author email",
			text:    feedHeader + `<modified>2025-06-03T09:41:12Z</modified><entry><link href="https://mail.google.com/mail/u/0?message_id=a"/><modified>2025-06-03T05:42:31Z</modified><author><name>A</name></author></entry></feed>`,
			wantErr: ErrMalformedFeedEntry,
		},
		{
			name:    "entry without modified",
			text:    feedHeader + `<modified>2025-06-03T09:41:12Z</modified><entry><link href="https://mail.google.com/mail/u/0?message_id=a"/><author><name>A</name><email>a@example.com</email></author></entry></feed>`,
			wantErr: ErrMalformedFeedEntry,
		},
		{
			name:    "header without modified",
			text:    feedHeader + `</feed>`,
			wantErr: ErrMalformedFeedHeader,
		},
		{
			name:    "header without title",
			text:    `<feed><modified>2025-06-03T09:41:12Z</modified></feed>`,
			wantErr: ErrMalformedFeedHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ExtractFeed(tt.text)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, info)
		})
	}
}
