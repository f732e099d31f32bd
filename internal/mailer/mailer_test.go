package mailer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage_Multipart(t *testing.T) {
	e, err := Confirmation("no-reply@tienda.test", "Tienda", "ana@example.com", "Ana Gómez", "ord-42")
	require.NoError(t, err)

	raw, err := buildMessage(e, "tienda.test", time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	msg := string(raw)

	assert.Contains(t, msg, "Date: Fri, 16 Oct 2026 09:00:00 +0000\r\n")
	assert.Contains(t, msg, "From: Tienda <no-reply@tienda.test>\r\n")
	assert.Contains(t, msg, "To: ana@example.com\r\n")
	assert.Contains(t, msg, "Subject: =?utf-8?q?Confirmaci=C3=B3n_de_pago?=\r\n")
	assert.Contains(t, msg, "X-Order-ID: ord-42\r\n")
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "Content-Type: text/plain; charset=UTF-8")
	assert.Contains(t, msg, "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, msg, "<h2>Hola Ana Gómez</h2>")
	assert.True(t, strings.HasSuffix(msg, "--\r\n"))
}

func TestBuildMessage_SinglePart(t *testing.T) {
	raw, err := buildMessage(Email{From: "a@x.test", To: []string{"b@x.test"}, Subject: "hi", TextBody: "body"}, "x.test", time.Now())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Content-Type: text/plain; charset=UTF-8\r\n")
	assert.NotContains(t, string(raw), "multipart")
}

func TestBuildMessage_Required(t *testing.T) {
	ok := Email{From: "a@x.test", To: []string{"b@x.test"}, Subject: "hi", TextBody: "body"}
	tests := []struct {
		name   string
		mutate func(*Email)
		want   error
	}{
		{"no recipient", func(e *Email) { e.To = nil }, ErrNoRecipient},
		{"no sender", func(e *Email) { e.From = "" }, ErrNoSender},
		{"no subject", func(e *Email) { e.Subject = "" }, ErrNoSubject},
		{"no body", func(e *Email) { e.TextBody = "" }, ErrNoBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := ok
			tt.mutate(&e)
			_, err := buildMessage(e, "x.test", time.Now())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConfirmation_EscapesName(t *testing.T) {
	e, err := Confirmation("no-reply@tienda.test", "", "x@example.com", "<script>", "ord-1")
	require.NoError(t, err)
	assert.NotContains(t, e.HTMLBody, "<script>")
	assert.Contains(t, e.HTMLBody, "&lt;script&gt;")

	e, err = Confirmation("no-reply@tienda.test", "", "x@example.com", "  ", "ord-1")
	require.NoError(t, err)
	assert.Contains(t, e.TextBody, "Hola cliente,")
}

func TestMock_RecordsMail(t *testing.T) {
	m := &Mock{}
	require.NoError(t, m.Send(context.Background(), Email{Subject: "a"}))
	require.NoError(t, m.Send(context.Background(), Email{Subject: "b"}))
	sent := m.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "b", sent[1].Subject)
}
