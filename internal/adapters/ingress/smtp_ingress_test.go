package ingress

import (
	"errors"
	"strings"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/suppliers"
)

const rawDelayEmail = "From: Acme Logistics <logistics@acme-supply.com>\r\n" +
	"To: purchasing@buyer.example\r\n" +
	"Subject: " + delayEmailSubject + "\r\n" +
	"\r\n" +
	delayEmailBody + "\r\n"

func newSession(t *testing.T, svc *core.OrchestratorService, domains []string) *smtpSession {
	t.Helper()
	ingress := NewSMTPServer(svc, suppliers.NewDirectory(domains, zap.NewNop()), zap.NewNop(), config.SMTPConfig{})
	sess, err := (&smtpBackend{ingress: ingress}).NewSession(nil)
	require.NoError(t, err)
	return sess.(*smtpSession)
}

func TestSMTPSession_RoutesSupplierMail(t *testing.T) {
	svc := newTestService(t, nil)
	sess := newSession(t, svc, []string{"acme-supply.com"})

	require.NoError(t, sess.Mail("bounces@acme-supply.com", nil))
	require.NoError(t, sess.Rcpt("purchasing@buyer.example", nil))
	require.NoError(t, sess.Data(strings.NewReader(rawDelayEmail)))

	events := svc.Timeline(core.TimelineFilter{AgentID: core.AgentPOTracker})
	require.Len(t, events, 1)
	assert.True(t, events[0].Success)
	assert.Equal(t, "escalate_if_critical", events[0].Action)
}

func TestSMTPSession_RejectsUnknownSupplier(t *testing.T) {
	svc := newTestService(t, nil)
	sess := newSession(t, svc, []string{"widgets.example"})

	require.NoError(t, sess.Mail("bounces@acme-supply.com", nil))
	err := sess.Data(strings.NewReader(rawDelayEmail))

	var smtpErr *smtp.SMTPError
	require.True(t, errors.As(err, &smtpErr))
	assert.Equal(t, 550, smtpErr.Code)
	assert.Empty(t, svc.Timeline(core.TimelineFilter{}))
}

func TestSMTPSession_ModelFailureStillAccepted(t *testing.T) {
	svc := newTestService(t, failingLLM{})
	sess := newSession(t, svc, nil)

	require.NoError(t, sess.Data(strings.NewReader(rawDelayEmail)))

	metrics := svc.Metrics()
	assert.Equal(t, 1, metrics.TotalProcessed)
	require.NotNil(t, metrics.SuccessRate)
	assert.Zero(t, *metrics.SuccessRate)
}

func TestSMTPSession_MalformedMessage(t *testing.T) {
	sess := newSession(t, newTestService(t, nil), nil)

	err := sess.Data(strings.NewReader("this is not a header block"))
	var smtpErr *smtp.SMTPError
	require.True(t, errors.As(err, &smtpErr))
	assert.Equal(t, 554, smtpErr.Code)
}

func TestSMTPSession_Reset(t *testing.T) {
	sess := newSession(t, newTestService(t, nil), nil)
	require.NoError(t, sess.Mail("a@b.example", nil))
	require.NoError(t, sess.Rcpt("c@d.example", nil))

	sess.Reset()
	assert.Empty(t, sess.sender)
	assert.Empty(t, sess.recipients)
	assert.NoError(t, sess.Logout())
}
