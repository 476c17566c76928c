package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nhle/gmail-notifier/internal/model"
)

var (
	messageCountRe = regexp.MustCompile(`(\d+) messages?`)
	senderEmailRe  = regexp.MustCompile(`<b>.*?</b>\s*&lt;([^&]+)&gt;`)
	attachmentRe   = regexp.MustCompile(`(?i)\.(pdf|docx?|xlsx?|zip|rar|7z|png|jpg|jpeg|gif|md|txt)(\?|$)`)
)

const subjectPrefix = "Gmail - "

// ExtractThread parses the print view of a thread. Relative inline images
// are rebased onto baseURL when it is non-empty. Timestamps are read in the
// local zone.
func ExtractThread(text, baseURL string) (model.ThreadDetail, error) {
	return ExtractThreadIn(text, baseURL, time.Local)
}

// ExtractThreadIn is ExtractThread with an explicit zone for timestamps.
func ExtractThreadIn(text, baseURL string, loc *time.Location) (model.ThreadDetail, error) {
	doc, err := parseDocument(text)
	if err != nil {
		return model.ThreadDetail{}, err
	}

	subject := strings.TrimSpace(doc.Find("title").First().Text())
	if subject == "" {
		subject = strings.TrimSpace(doc.Find(`.maincontent font[size="+1"] b`).First().Text())
	}
	subject = strings.TrimPrefix(subject, subjectPrefix)

	count := 0
	if m := messageCountRe.FindStringSubmatch(doc.Find(`.maincontent font[color="#777"]`).First().Text()); m != nil {
		count, _ = strconv.Atoi(m[1])
	}

	messages := make([]model.Message, 0)
	var msgErr error
	doc.Find("table.message").EachWithBreak(func(i int, table *goquery.Selection) bool {
		msg, err := extractMessage(table, baseURL, loc)
		if err != nil {
			msgErr = fmt.Errorf("message %d: %w", i, err)
			return false
		}
		messages = append(messages, msg)
		return true
	})
	if msgErr != nil {
		return model.ThreadDetail{}, msgErr
	}

	return model.ThreadDetail{
		Subject:      subject,
		MessageCount: count,
		Messages:     messages,
	}, nil
}

func extractMessage(table *goquery.Selection, baseURL string, loc *time.Location) (model.Message, error) {
	msg := model.Message{
		SenderName: strings.TrimSpace(table.Find("b").First().Text()),
		To:         make([]string, 0),
		Cc:         make([]string, 0),
	}
	if m := senderEmailRe.FindStringSubmatch(innerHTML(table)); m != nil {
		msg.SenderEmail = strings.TrimSpace(m[1])
	}

	if raw := table.Find(`td[align="right"] font[size="-1"]`).First().Text(); strings.TrimSpace(raw) != "" {
		t, err := FormatDateIn(raw, loc)
		if err != nil {
			return model.Message{}, err
		}
		msg.Time = t
	}

	table.Find(".recipient div").Each(func(_ int, div *goquery.Selection) {
		line := strings.TrimSpace(innerHTML(div))
		switch {
		case strings.HasPrefix(line, "To:"):
			msg.To = append(msg.To, ParseAddressField(strings.TrimSpace(strings.TrimPrefix(line, "To:")))...)
		case strings.HasPrefix(line, "Cc:"):
			msg.Cc = append(msg.Cc, ParseAddressField(strings.TrimSpace(strings.TrimPrefix(line, "Cc:")))...)
		case strings.HasPrefix(line, "Reply-To:"):
			msg.ReplyTo = decodeEntities(strings.TrimSpace(strings.TrimPrefix(line, "Reply-To:")))
		}
	})

	content := table.Find(`div[style*="overflow: hidden"]`).First()
	if content.Length() == 0 {
		return msg, nil
	}

	content.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		if !attachmentRe.MatchString(href) {
			return
		}
		name := strings.TrimSpace(a.Text())
		if name == "" {
			name = href
		}
		msg.Attachments = append(msg.Attachments, model.Attachment{FileName: name, URL: href})
	})

	rewriteImages(content, baseURL)

	msg.ContentHTML = strings.TrimSpace(innerHTML(content))
	msg.ContentText = strings.TrimSpace(content.Text())
	return msg, nil
}

// rewriteImages rebases relative inline images and lets their container
// scroll horizontally. Tracking pixels and absolute images are left alone.
func rewriteImages(content *goquery.Selection, baseURL string) {
	content.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		if img.AttrOr("width", "") == "1" && img.AttrOr("height", "") == "1" {
			return
		}
		src := img.AttrOr("src", "")
		if strings.HasPrefix(src, "http") {
			return
		}
		if baseURL != "" {
			img.SetAttr("src", baseURL+src)
		}
		parent := img.Parent()
		if parent.Length() == 0 {
			return
		}
		style := strings.TrimSpace(parent.AttrOr("style", ""))
		if style == "" {
			parent.SetAttr("style", "overflow-x: auto;")
			return
		}
		parent.SetAttr("style", strings.TrimRight(style, ";")+"; overflow-x: auto;")
	})
}
