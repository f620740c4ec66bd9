package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Attachment struct {
	FileName    string
	ContentType string
	Data        []byte
}

type Message struct {
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Mailer struct {
	cfg  Config
	send SendFunc
	now  func() time.Time
}

func NewMailer(cfg Config) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &Mailer{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

// WithSender swaps the SMTP transport, used by tests.
func (m *Mailer) WithSender(send SendFunc) *Mailer {
	m.send = send
	return m
}

func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("mail: no recipients")
	}
	raw, err := m.compose(msg)
	if err != nil {
		return fmt.Errorf("mail: compose: %w", err)
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	// smtp.SendMail takes no context; run it aside and stop waiting on cancel.
	done := make(chan error, 1)
	go func() { done <- m.send(addr, auth, m.cfg.From, msg.To, raw) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mail: send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mailer) compose(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	header("From", m.cfg.From)
	header("To", strings.Join(msg.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", m.now().Format(time.RFC1123Z))
	header("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), m.cfg.Host))
	header("MIME-Version", "1.0")
	header("Content-Type", "multipart/mixed; boundary="+w.Boundary())
	buf.WriteString("\r\n")

	if msg.Text != "" || msg.HTML == "" {
		if err := writePart(w, "text/plain; charset=utf-8", "quoted-printable", nil, []byte(msg.Text)); err != nil {
			return nil, err
		}
	}
	if msg.HTML != "" {
		if err := writePart(w, "text/html; charset=utf-8", "quoted-printable", nil, []byte(msg.HTML)); err != nil {
			return nil, err
		}
	}
	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		disp := map[string]string{"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName})}
		if err := writePart(w, ct, "base64", disp, a.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(w *multipart.Writer, contentType, encoding string, extra map[string]string, body []byte) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", encoding)
	for k, v := range extra {
		h.Set(k, v)
	}
	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if encoding == "base64" {
		return writeBase64Lines(pw, body)
	}
	qw := quotedprintable.NewWriter(pw)
	if _, err := qw.Write(body); err != nil {
		return err
	}
	return qw.Close()
}

// writeBase64Lines wraps the encoding at 76 columns as RFC 2045 requires.
func writeBase64Lines(w io.Writer, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := w.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := w.Write([]byte(enc + "\r\n"))
	return err
}
