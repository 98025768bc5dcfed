// Package mailer delivers purchase confirmation emails.
//
// Messages are composed as multipart/alternative MIME (plain text plus HTML)
// and sent over SMTP. When SMTP is not configured, LogSender records what
// would have been sent instead.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"
)

// ErrNotConfigured is returned by NewSMTP when no host is set.
var ErrNotConfigured = errors.New("mailer: smtp not configured")

// Message is one outgoing email.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string // optional
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Config holds SMTP settings. Port 465 uses implicit TLS; other ports
// upgrade with STARTTLS when the server offers it.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender sends through an SMTP relay.
type SMTPSender struct {
	cfg Config
	now func() time.Time
}

// NewSMTP returns an SMTPSender, or ErrNotConfigured when cfg has no host.
func NewSMTP(cfg Config) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mailer: from address required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg, now: time.Now}, nil
}

// Compose renders m as an RFC 5322 message from the given sender.
func Compose(from mail.Address, m Message, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{&from})
	h.SetAddressList("To", []*mail.Address{{Name: m.ToName, Address: m.To}})
	h.SetSubject(m.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("mailer: message id: %w", err)
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("mailer: create writer: %w", err)
	}
	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("mailer: create inline: %w", err)
	}
	if err := writePart(tw, "text/plain", m.Text); err != nil {
		return nil, err
	}
	if m.HTML != "" {
		if err := writePart(tw, "text/html", m.HTML); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("mailer: close inline: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("mailer: close message: %w", err)
	}
	return buf.Bytes(), nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")
	w, err := tw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("mailer: create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		w.Close()
		return fmt.Errorf("mailer: write %s part: %w", contentType, err)
	}
	return w.Close()
}

// Send composes m and delivers it. The context bounds the whole SMTP
// conversation.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	raw, err := Compose(mail.Address{Name: s.cfg.FromName, Address: s.cfg.From}, m, s.now())
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("mailer: connect: %w", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	tlsCfg := &tls.Config{ServerName: s.cfg.Host}
	if s.cfg.Port == 465 {
		conn = tls.Client(conn, tlsCfg)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("mailer: smtp handshake: %w", err)
	}
	defer c.Close()

	if s.cfg.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsCfg); err != nil {
				return fmt.Errorf("mailer: starttls: %w", err)
			}
		}
	}
	if s.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("mailer: auth: %w", err)
			}
		}
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mailer: mail from: %w", err)
	}
	if err := c.Rcpt(m.To); err != nil {
		return fmt.Errorf("mailer: rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("mailer: data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("mailer: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mailer: end data: %w", err)
	}
	return c.Quit()
}

// LogSender logs messages instead of sending them.
type LogSender struct {
	Log zerolog.Logger
}

// Send logs the subject and recipient domain.
func (l LogSender) Send(_ context.Context, m Message) error {
	domain := m.To
	if i := strings.LastIndexByte(m.To, '@'); i >= 0 {
		domain = m.To[i+1:]
	}
	l.Log.Info().
		Str("to_domain", domain).
		Str("subject", m.Subject).
		Msg("email not sent (smtp not configured)")
	return nil
}
