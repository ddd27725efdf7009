package mailbox

import (
	"strings"
	"testing"
	"time"
)

const plainReply = "From: Ops Person <ops@example.com>\r\n" +
	"To: relay@example.com\r\n" +
	"Subject: Re: [TaskPing #XYZ789] Task finished\r\n" +
	"Date: Mon, 02 Mar 2026 10:15:00 +0000\r\n" +
	"Message-ID: <reply-1@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"run the build\r\n" +
	"\r\n" +
	"> quoted original\r\n"

func TestParseMessagePlainText(t *testing.T) {
	t.Parallel()

	email, err := ParseMessage(strings.NewReader(plainReply))
	if err != nil {
		t.Fatalf("ParseMessage returned error: %v", err)
	}
	if email.From != "ops@example.com" {
		t.Fatalf("unexpected from %q", email.From)
	}
	if email.Subject != "Re: [TaskPing #XYZ789] Task finished" {
		t.Fatalf("unexpected subject %q", email.Subject)
	}
	if email.MessageID != "reply-1@example.com" {
		t.Fatalf("unexpected message id %q", email.MessageID)
	}
	if !email.Date.Equal(time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", email.Date)
	}
	if !strings.HasPrefix(email.Text, "run the build") {
		t.Fatalf("unexpected text %q", email.Text)
	}
	if email.Key() != "mid:reply-1@example.com" {
		t.Fatalf("unexpected key %q", email.Key())
	}
}

func TestParseMessageMultipartAlternative(t *testing.T) {
	t.Parallel()

	raw := "From: ops@example.com\r\n" +
		"Subject: =?UTF-8?B?UmU6IFtUYXNrUGluZyAjQUJDMTIzXQ==?=\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
		"\r\n" +
		"--b1\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"deploy staging\r\n" +
		"--b1\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>deploy staging</p>\r\n" +
		"--b1--\r\n"

	email, err := ParseMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseMessage returned error: %v", err)
	}
	if email.Subject != "Re: [TaskPing #ABC123]" {
		t.Fatalf("expected decoded subject, got %q", email.Subject)
	}
	if strings.TrimSpace(email.Text) != "deploy staging" {
		t.Fatalf("unexpected text %q", email.Text)
	}
	if !strings.Contains(email.HTML, "<p>deploy staging</p>") {
		t.Fatalf("unexpected html %q", email.HTML)
	}
}

func TestEmailKeyPrefersUID(t *testing.T) {
	t.Parallel()

	email := Email{UID: 42, UIDValidity: 7, MessageID: "x@example.com"}
	if email.Key() != "uid:7:42" {
		t.Fatalf("unexpected key %q", email.Key())
	}
}
