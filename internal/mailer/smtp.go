package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/ariefcatur/go-shop-payments/internal/config"
)

const (
	tlsImplicit = "tls"
	tlsStart    = "starttls"
)

// SMTPMailer opens one connection per message. TLSMode is "tls" (implicit),
// "starttls", or empty for plain (MailHog and friends).
type SMTPMailer struct {
	cfg          config.SMTPConfig
	dialTimeout  time.Duration
	writeTimeout time.Duration
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, dialTimeout: 5 * time.Second, writeTimeout: 10 * time.Second}
}

func (m *SMTPMailer) Send(ctx context.Context, e Email) error {
	raw, err := buildMessage(e, m.domain(), time.Now())
	if err != nil {
		return err
	}

	conn, err := m.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if err := m.handshake(c); err != nil {
		return err
	}
	if err := envelope(c, e); err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
	if err := body(c, raw); err != nil {
		return err
	}
	return c.Quit()
}

func (m *SMTPMailer) domain() string {
	if m.cfg.Host == "" {
		return "localhost"
	}
	return m.cfg.Host
}

func (m *SMTPMailer) tlsConfig() *tls.Config {
	return &tls.Config{ServerName: m.cfg.Host, InsecureSkipVerify: m.cfg.SkipVerifyTLS}
}

// dial connects and, for implicit TLS, finishes the TLS handshake before
// the SMTP greeting is read.
func (m *SMTPMailer) dial(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: m.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(m.cfg.Host, m.cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("smtp dial: %w", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	if m.cfg.TLSMode != tlsImplicit {
		return conn, nil
	}
	tc := tls.Client(conn, m.tlsConfig())
	if err := tc.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp tls handshake: %w", err)
	}
	return tc, nil
}

// handshake upgrades to STARTTLS when asked and logs in when credentials
// are set. Servers without AUTH (MailHog) are used anonymously.
func (m *SMTPMailer) handshake(c *smtp.Client) error {
	if m.cfg.TLSMode == tlsStart {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("smtp: server does not support STARTTLS")
		}
		if err := c.StartTLS(m.tlsConfig()); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if m.cfg.User == "" || m.cfg.Pass == "" {
		return nil
	}
	if ok, _ := c.Extension("AUTH"); !ok {
		return nil
	}
	if err := c.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	return nil
}

func envelope(c *smtp.Client, e Email) error {
	if err := c.Mail(e.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range e.recipients() {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	return nil
}

func body(c *smtp.Client, raw []byte) error {
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	// Close menunggu balasan 250 dari server
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return nil
}
