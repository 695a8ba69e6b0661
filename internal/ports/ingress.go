package ports

import (
	"context"

	"github.com/mikey/supplier-mail-router/internal/core"
)

// Ingress defines the interface for an entry point that feeds supplier email to the router
type Ingress interface {
	// ProcessEmail routes an email and returns the processing result
	ProcessEmail(ctx context.Context, email *core.EmailMessage) (*core.ProcessResult, error)

	// Start starts the ingress service
	Start() error

	// Stop stops the ingress service
	Stop() error
}
