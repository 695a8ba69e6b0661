package ingress

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/suppliers"
)

const smtpProcessTimeout = 60 * time.Second

var errUnknownSupplier = &smtp.SMTPError{
	Code:         550,
	EnhancedCode: smtp.EnhancedCode{5, 7, 1},
	Message:      "Sender is not a registered supplier",
}

// SMTPServer accepts supplier mail relayed from the mail gateway and routes it
type SMTPServer struct {
	service   *core.OrchestratorService
	directory *suppliers.Directory
	logger    *zap.Logger
	cfg       config.SMTPConfig
	server    *smtp.Server
}

// NewSMTPServer creates a new SMTP ingress
func NewSMTPServer(
	service *core.OrchestratorService,
	directory *suppliers.Directory,
	logger *zap.Logger,
	cfg config.SMTPConfig,
) *SMTPServer {
	return &SMTPServer{
		service:   service,
		directory: directory,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start starts the SMTP listener
func (s *SMTPServer) Start() error {
	s.server = smtp.NewServer(&smtpBackend{ingress: s})

	s.server.Addr = s.cfg.ListenAddress
	s.server.Domain = s.cfg.Domain
	s.server.ReadTimeout = 30 * time.Second
	s.server.WriteTimeout = 30 * time.Second
	s.server.MaxMessageBytes = s.cfg.MaxMessageBytes
	s.server.MaxRecipients = s.cfg.MaxRecipients
	s.server.AllowInsecureAuth = true

	s.logger.Info("SMTP ingress starting", zap.String("address", s.cfg.ListenAddress))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			s.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the SMTP listener
func (s *SMTPServer) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

// ProcessEmail routes an email directly, bypassing the SMTP session
func (s *SMTPServer) ProcessEmail(ctx context.Context, email *core.EmailMessage) (*core.ProcessResult, error) {
	return s.service.Process(ctx, email)
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	ingress *SMTPServer
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{ingress: b.ingress}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	ingress    *SMTPServer
	sender     string
	recipients []string
}

func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data parses the message, checks the supplier directory and routes it.
// Processing failures are logged and recorded but the message is still accepted.
func (s *smtpSession) Data(r io.Reader) error {
	logger := s.ingress.logger

	raw, err := io.ReadAll(r)
	if err != nil {
		logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	email, err := ParseMessage(bytes.NewReader(raw), s.sender)
	if err != nil {
		logger.Error("Failed to parse email message", zap.Error(err))
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Malformed message",
		}
	}

	senderDomain := suppliers.Domain(email.Sender)
	if !s.ingress.directory.IsAllowed(email.Sender) {
		logger.Info("Rejecting mail from unknown supplier",
			zap.String("from", email.Sender),
			zap.String("sender_domain", senderDomain))
		return errUnknownSupplier
	}

	ctx, cancel := context.WithTimeout(context.Background(), smtpProcessTimeout)
	defer cancel()

	result, err := s.ingress.service.Process(ctx, email)
	if err != nil {
		logger.Error("Failed to route email",
			zap.Error(err),
			zap.String("sender", email.Sender),
			zap.String("sender_domain", senderDomain))
		return nil
	}

	logger.Info("Processed email",
		zap.String("from", email.Sender),
		zap.String("sender_domain", senderDomain),
		zap.Strings("recipients", s.recipients),
		zap.String("execution_id", result.ExecutionID),
		zap.String("routed_to", result.Decision.TargetAgent),
		zap.String("action", result.Action))
	return nil
}

func (s *smtpSession) Logout() error {
	return nil
}
