package mailer

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"sort"
	"strings"
	"time"
)

var (
	ErrNoRecipient = errors.New("mailer: at least one recipient required")
	ErrNoSender    = errors.New("mailer: from address required")
	ErrNoSubject   = errors.New("mailer: subject required")
	ErrNoBody      = errors.New("mailer: text or html body required")
)

func (e Email) validate() error {
	switch {
	case len(e.To) == 0:
		return ErrNoRecipient
	case e.From == "":
		return ErrNoSender
	case e.Subject == "":
		return ErrNoSubject
	case e.TextBody == "" && e.HTMLBody == "":
		return ErrNoBody
	}
	return nil
}

// address renders "Name <addr>", encoding non-ASCII names per RFC 2047.
func address(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), addr)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// buildMessage renders e as an RFC 5322 message. Text plus HTML become a
// multipart/alternative body.
func buildMessage(e Email, domain string, now time.Time) ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	var b strings.Builder
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }

	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", randomHex(12), domain))
	header("From", address(e.FromName, e.From))
	header("To", strings.Join(e.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", e.Subject))
	header("MIME-Version", "1.0")

	keys := make([]string, 0, len(e.Headers))
	for k, v := range e.Headers {
		if k != "" && v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		header(k, e.Headers[k])
	}

	part := func(contentType, body string) {
		header("Content-Type", contentType+"; charset=UTF-8")
		header("Content-Transfer-Encoding", "8bit")
		b.WriteString("\r\n")
		b.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			b.WriteString("\r\n")
		}
	}

	switch {
	case e.TextBody != "" && e.HTMLBody != "":
		boundary := "alt-" + randomHex(12)
		header("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
		b.WriteString("\r\n")
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		part("text/plain", e.TextBody)
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		part("text/html", e.HTMLBody)
		fmt.Fprintf(&b, "--%s--\r\n", boundary)
	case e.HTMLBody != "":
		part("text/html", e.HTMLBody)
	default:
		part("text/plain", e.TextBody)
	}
	return []byte(b.String()), nil
}
