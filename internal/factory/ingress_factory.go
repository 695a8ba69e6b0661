package factory

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/adapters/ingress"
	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/ports"
	"github.com/mikey/supplier-mail-router/internal/suppliers"
)

// IngressFactory creates the configured ingresses
type IngressFactory struct {
	cfg       *config.Config
	logger    *zap.Logger
	service   *core.OrchestratorService
	directory *suppliers.Directory
}

// NewIngressFactory creates a new ingress factory
func NewIngressFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service *core.OrchestratorService,
	directory *suppliers.Directory,
) *IngressFactory {
	return &IngressFactory{
		cfg:       cfg,
		logger:    logger,
		service:   service,
		directory: directory,
	}
}

// CreateIngresses creates every ingress listed in server.ingress
func (f *IngressFactory) CreateIngresses() ([]ports.Ingress, error) {
	serverCfg, err := f.cfg.GetServer()
	if err != nil {
		return nil, err
	}
	if len(serverCfg.Ingress) == 0 {
		return nil, fmt.Errorf("no ingress configured")
	}

	ingresses := make([]ports.Ingress, 0, len(serverCfg.Ingress))
	for _, kind := range serverCfg.Ingress {
		switch strings.ToLower(strings.TrimSpace(kind)) {
		case "http":
			ingresses = append(ingresses, ingress.NewHTTPServer(f.service, f.logger, serverCfg.HTTP))
		case "smtp":
			ingresses = append(ingresses, ingress.NewSMTPServer(f.service, f.directory, f.logger, serverCfg.SMTP))
		default:
			return nil, fmt.Errorf("unsupported ingress type: %s", kind)
		}
	}
	return ingresses, nil
}
