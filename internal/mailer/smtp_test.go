package mailer

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-payments/internal/config"
)

type session struct {
	commands []string
	data     string
}

// serveOnce speaks just enough plain SMTP for one message, like MailHog.
func serveOnce(t *testing.T) (config.SMTPConfig, <-chan session) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	out := make(chan session, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
		r := bufio.NewReader(conn)
		reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

		var s session
		reply("220 mail.test ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				out <- s
				return
			}
			cmd := strings.TrimRight(line, "\r\n")
			s.commands = append(s.commands, cmd)
			switch verb := strings.ToUpper(strings.SplitN(cmd, " ", 2)[0]); verb {
			case "EHLO":
				reply("250-mail.test")
				reply("250 8BITMIME")
			case "DATA":
				reply("354 end with <CRLF>.<CRLF>")
				var b strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil || l == ".\r\n" {
						break
					}
					b.WriteString(l)
				}
				s.data = b.String()
				reply("250 queued")
			case "QUIT":
				reply("221 bye")
				out <- s
				return
			default:
				reply("250 ok")
			}
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return config.SMTPConfig{Host: host, Port: port}, out
}

func TestSMTPMailer_SendPlain(t *testing.T) {
	cfg, sessions := serveOnce(t)
	m := NewSMTPMailer(cfg)

	e, err := Confirmation("no-reply@tienda.test", "Tienda", "ana@example.com", "Ana", "ord-9")
	require.NoError(t, err)
	e.Bcc = []string{"audit@tienda.test"}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Send(ctx, e))

	s := <-sessions
	assert.Contains(t, s.commands, "MAIL FROM:<no-reply@tienda.test> BODY=8BITMIME")
	assert.Contains(t, s.commands, "RCPT TO:<ana@example.com>")
	assert.Contains(t, s.commands, "RCPT TO:<audit@tienda.test>")
	assert.Equal(t, "QUIT", s.commands[len(s.commands)-1])
	assert.Contains(t, s.data, "X-Order-ID: ord-9\r\n")
	assert.NotContains(t, s.data, "Bcc:")
}

func TestSMTPMailer_StartTLSRequired(t *testing.T) {
	cfg, _ := serveOnce(t)
	cfg.TLSMode = "starttls"

	err := NewSMTPMailer(cfg).Send(context.Background(), Email{
		From: "a@x.test", To: []string{"b@x.test"}, Subject: "hi", TextBody: "body",
	})
	assert.ErrorContains(t, err, "STARTTLS")
}

func TestSMTPMailer_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	err = NewSMTPMailer(config.SMTPConfig{Host: host, Port: port}).Send(context.Background(), Email{
		From: "a@x.test", To: []string{"b@x.test"}, Subject: "hi", TextBody: "body",
	})
	assert.ErrorContains(t, err, "smtp dial")
}
