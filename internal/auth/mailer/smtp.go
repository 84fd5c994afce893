package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPConfig holds the outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // defaults to Username
	AppName  string // used in subject lines

	Timeout time.Duration
}

// Ready reports whether every setting needed to send is present.
func (c SMTPConfig) Ready() bool {
	return c.Host != "" && c.Username != "" && c.Password != "" && c.from() != ""
}

func (c SMTPConfig) from() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// SMTPSender delivers OTPs over SMTP with PLAIN auth. Port 465 uses implicit
// TLS, other ports upgrade with STARTTLS when the server offers it.
type SMTPSender struct {
	cfg SMTPConfig
	now func() time.Time
}

// NewSMTPSender returns a sender for cfg. An incomplete cfg yields a sender
// whose every call fails with ErrNotConfigured.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.AppName == "" {
		cfg.AppName = "otpgate"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &SMTPSender{cfg: cfg, now: time.Now}
}

// Ready reports whether the sender is configured.
func (s *SMTPSender) Ready() bool { return s.cfg.Ready() }

func (s *SMTPSender) SendOTP(ctx context.Context, m Message) error {
	if !s.cfg.Ready() {
		return ErrNotConfigured
	}

	msg, err := compose(s.cfg.from(), s.cfg.AppName, m, s.now())
	if err != nil {
		return fmt.Errorf("mailer: compose: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	c, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("mailer: dial: %w", err)
	}
	defer c.Close()

	if err := s.deliver(c, m.To, msg); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{}

	var (
		conn net.Conn
		err  error
	)
	if s.cfg.Port == 465 {
		td := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}}
		conn, err = td.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (s *SMTPSender) deliver(c *smtp.Client, to string, msg []byte) error {
	if s.cfg.Port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
				return err
			}
		}
	}

	if ok, _ := c.Extension("AUTH"); !ok {
		return errors.New("server does not support AUTH")
	}
	if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
		return err
	}

	if err := c.Mail(s.cfg.from()); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// String hides the password when the config is logged.
func (c SMTPConfig) String() string {
	return fmt.Sprintf("smtp://%s@%s:%d (from %s)", c.Username, c.Host, c.Port, c.from())
}
