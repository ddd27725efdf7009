// Package mailbox watches an IMAP inbox for operator replies and hands each
// new message, parsed, to a Handler.
package mailbox

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"tprelay/internal/processed"
)

const maxPartBytes = 1 << 20

// Email is one parsed inbound message. UID and UIDValidity are zero when
// the message did not come from an IMAP server.
type Email struct {
	UID         uint32
	UIDValidity uint32
	MessageID   string
	From        string
	Subject     string
	Text        string
	HTML        string
	Date        time.Time
}

// Key is the dedup key recorded in the processed store for this message.
func (e Email) Key() string {
	return processed.Key(processed.Identity{
		UID:         e.UID,
		UIDValidity: e.UIDValidity,
		MessageID:   e.MessageID,
		Subject:     e.Subject,
		Date:        e.Date,
	})
}

// ParseMessage reads an RFC 5322 message. The first text/plain and
// text/html inline parts are kept; attachments are ignored. Parts in
// charsets go-message does not know are still read as raw bytes.
func ParseMessage(r io.Reader) (Email, error) {
	reader, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return Email{}, fmt.Errorf("parse message: %w", err)
	}

	header := reader.Header
	email := Email{}
	if subject, err := header.Subject(); err == nil {
		email.Subject = subject
	} else {
		email.Subject = header.Get("Subject")
	}
	if addresses, err := header.AddressList("From"); err == nil && len(addresses) > 0 {
		email.From = addresses[0].Address
	} else {
		email.From = strings.TrimSpace(header.Get("From"))
	}
	if date, err := header.Date(); err == nil {
		email.Date = date
	}
	if messageID, err := header.MessageID(); err == nil {
		email.MessageID = messageID
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			if email.Text != "" || email.HTML != "" {
				break
			}
			return Email{}, fmt.Errorf("read message part: %w", err)
		}
		if part == nil {
			continue
		}

		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := inline.ContentType()
		if err != nil {
			contentType = "text/plain"
		}
		if contentType != "text/plain" && contentType != "text/html" {
			continue
		}

		body, err := io.ReadAll(io.LimitReader(part.Body, maxPartBytes))
		if err != nil {
			return Email{}, fmt.Errorf("read %s part: %w", contentType, err)
		}
		switch {
		case contentType == "text/plain" && email.Text == "":
			email.Text = string(body)
		case contentType == "text/html" && email.HTML == "":
			email.HTML = string(body)
		}
	}

	return email, nil
}
