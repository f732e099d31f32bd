// Package mailer sends plain SMTP mail. The payment flow only ever sends
// the confirmation built by Confirmation.
package mailer

import "context"

type Service interface {
	Send(ctx context.Context, e Email) error
}

type Email struct {
	FromName string // opsional, mis. "Tienda"
	From     string

	To  []string
	Bcc []string

	Subject  string
	TextBody string
	HTMLBody string

	Headers map[string]string
}

func (e Email) recipients() []string {
	out := make([]string, 0, len(e.To)+len(e.Bcc))
	out = append(out, e.To...)
	return append(out, e.Bcc...)
}
