package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
)

const (
	dialTimeout    = 10 * time.Second
	sessionTimeout = 30 * time.Second
)

// RelaySink forwards an annotated copy of every routed email to a downstream mailbox over SMTP
type RelaySink struct {
	cfg    config.RelaySinkConfig
	logger *zap.Logger
}

// NewRelaySink creates a new relay sink
func NewRelaySink(cfg config.RelaySinkConfig, logger *zap.Logger) (*RelaySink, error) {
	if len(cfg.To) == 0 {
		return nil, errors.New("relay sink requires at least one recipient")
	}
	if cfg.IntentHeader == "" {
		cfg.IntentHeader = "X-Supplier-Intent"
	}
	if cfg.RoutedToHeader == "" {
		cfg.RoutedToHeader = "X-Routed-To"
	}
	if cfg.ExecutionIDHeader == "" {
		cfg.ExecutionIDHeader = "X-Execution-ID"
	}
	return &RelaySink{cfg: cfg, logger: logger}, nil
}

// Deliver implements core.ResultSink
func (s *RelaySink) Deliver(ctx context.Context, msg *core.EmailMessage, result *core.ProcessResult) error {
	data := s.compose(msg, result)
	if err := s.send(ctx, data); err != nil {
		return fmt.Errorf("failed to relay routed email: %w", err)
	}
	s.logger.Debug("Relayed routed email",
		zap.String("execution_id", result.ExecutionID),
		zap.Strings("to", s.cfg.To))
	return nil
}

func (s *RelaySink) compose(msg *core.EmailMessage, result *core.ProcessResult) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "%s: %s\r\n", s.cfg.IntentHeader, result.Decision.Extraction.Intent)
	fmt.Fprintf(&b, "%s: %s\r\n", s.cfg.RoutedToHeader, result.Decision.TargetAgent)
	fmt.Fprintf(&b, "%s: %s\r\n", s.cfg.ExecutionIDHeader, result.ExecutionID)
	fmt.Fprintf(&b, "X-Routing-Action: %s\r\n", result.Action)
	fmt.Fprintf(&b, "X-Routing-Status: %s\r\n", result.Status)
	fmt.Fprintf(&b, "X-Routing-Confidence: %.4f\r\n", result.Decision.Extraction.Confidence)
	if po := result.Decision.Extraction.Entities.PONumber; po != "" {
		fmt.Fprintf(&b, "X-PO-Number: %s\r\n", po)
	}
	if result.Error != "" {
		fmt.Fprintf(&b, "X-Routing-Error: %s\r\n", headerValue(result.Error))
	}

	fmt.Fprintf(&b, "From: %s\r\n", headerValue(msg.Sender))
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(msg.Subject)))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")

	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

// send delivers data to the configured relay using go-smtp
func (s *RelaySink) send(ctx context.Context, data []byte) error {
	addr := net.JoinHostPort(s.cfg.Address, fmt.Sprint(s.cfg.Port))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}

	deadline := time.Now().Add(sessionTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(s.cfg.From, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range s.cfg.To {
		if err := c.Rcpt(recipient, nil); err != nil {
			s.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		s.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// headerValue flattens a value onto one header line
func headerValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}
