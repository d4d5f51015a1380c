package remote

import (
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/tmaeda/mailhub/internal/model"
)

// Outgoing is one message to send from the aggregating account.
type Outgoing struct {
	To      string
	Subject string
	Body    string

	// InReplyTo threads the message under an original when replying.
	InReplyTo string
}

// Sender sends mail through the aggregating account's SMTP endpoint.
type Sender struct {
	account model.AccountConfig
}

// NewSender creates an SMTP sender for the aggregating account.
func NewSender(account model.AccountConfig) *Sender {
	return &Sender{account: account}
}

// Send composes and delivers one plain-text message. Port 465 uses
// implicit TLS; anything else negotiates STARTTLS.
func (s *Sender) Send(out Outgoing) error {
	if strings.TrimSpace(out.To) == "" {
		return fmt.Errorf("recipient must not be empty")
	}

	body := composeMessage(s.account.Email, out)
	addr := s.account.SMTPHost + ":" + s.account.SMTPPort

	if s.account.SMTPPort == "465" {
		return s.sendImplicitTLS(addr, out.To, body)
	}
	return s.sendStartTLS(addr, out.To, body)
}

// composeMessage renders the RFC 822 text of an outgoing message.
func composeMessage(from string, out Outgoing) string {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", out.To))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n",
		mime.QEncoding.Encode("utf-8", out.Subject)))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n",
		time.Now().Format(time.RFC1123Z)))
	if out.InReplyTo != "" {
		msg.WriteString(fmt.Sprintf("In-Reply-To: <%s>\r\n", canonicalID(out.InReplyTo)))
		msg.WriteString(fmt.Sprintf("References: <%s>\r\n", canonicalID(out.InReplyTo)))
	}
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(out.Body)
	return msg.String()
}

// sendImplicitTLS delivers over an immediately-encrypted connection.
func (s *Sender) sendImplicitTLS(addr, to, body string) error {
	tlsConfig := &tls.Config{ServerName: s.account.SMTPHost}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return fmt.Errorf("TLS dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, s.account.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if err := s.authenticate(client); err != nil {
		return err
	}
	return deliver(client, s.account.Email, to, body)
}

// sendStartTLS delivers over a plain connection upgraded with STARTTLS.
func (s *Sender) sendStartTLS(addr, to, body string) error {
	conn, err := net.DialTimeout("tcp", addr, 30*time.Second)
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, s.account.SMTPHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	tlsConfig := &tls.Config{ServerName: s.account.SMTPHost}
	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("SMTP STARTTLS: %w", err)
	}

	if err := s.authenticate(client); err != nil {
		return err
	}
	return deliver(client, s.account.Email, to, body)
}

func (s *Sender) authenticate(client *smtp.Client) error {
	auth := smtp.PlainAuth("", s.account.Email, s.account.Password, s.account.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return &AuthError{Account: s.account.Email, Message: err.Error()}
	}
	return nil
}

// deliver runs the MAIL/RCPT/DATA exchange on an authenticated client.
func deliver(client *smtp.Client, from, to, body string) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}
	if _, err := writer.Write([]byte(body)); err != nil {
		return fmt.Errorf("writing message body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing message body: %w", err)
	}

	return client.Quit()
}
