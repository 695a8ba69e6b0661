package suppliers

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Directory decides which sender domains are accepted as suppliers
type Directory struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewDirectory creates a new supplier directory. An empty domain list accepts every sender.
func NewDirectory(domains []string, logger *zap.Logger) *Directory {
	normalized := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain != "" {
			normalized[domain] = struct{}{}
		}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized supplier directory", zap.Int("domains", len(normalized)))
	}

	return &Directory{
		domains: normalized,
		logger:  logger,
	}
}

// Domain returns the lowercased domain of an address such as
// "Acme <orders@acme.com>" or "orders@acme.com"
func Domain(from string) string {
	addr := strings.TrimSpace(from)
	if parsed, err := mail.ParseAddress(addr); err == nil {
		addr = parsed.Address
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 || at == len(addr)-1 {
		return ""
	}
	return strings.ToLower(addr[at+1:])
}

// IsAllowed checks if the sender's domain belongs to a known supplier
func (d *Directory) IsAllowed(from string) bool {
	if len(d.domains) == 0 {
		return true
	}

	domain := Domain(from)
	if domain == "" {
		return false
	}
	if _, ok := d.domains[domain]; ok {
		return true
	}

	if d.logger != nil {
		d.logger.Debug("Sender domain is not a known supplier",
			zap.String("domain", domain),
			zap.String("email", from))
	}
	return false
}
