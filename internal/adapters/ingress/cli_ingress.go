package ingress

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/core"
)

const bodyPreviewLimit = 500

// CLI routes a single email and prints a human readable report
type CLI struct {
	service *core.OrchestratorService
	logger  *zap.Logger
	out     io.Writer
	verbose bool
}

// NewCLI creates a new CLI ingress writing to out
func NewCLI(service *core.OrchestratorService, logger *zap.Logger, out io.Writer, verbose bool) *CLI {
	return &CLI{
		service: service,
		logger:  logger,
		out:     out,
		verbose: verbose,
	}
}

// ProcessEmail routes an email and prints the results
func (c *CLI) ProcessEmail(ctx context.Context, email *core.EmailMessage) (*core.ProcessResult, error) {
	c.logger.Debug("Processing email", zap.String("sender", email.Sender))

	fmt.Fprintf(c.out, "\n=== Email Summary ===\n")
	fmt.Fprintf(c.out, "From: %s\n", email.Sender)
	fmt.Fprintf(c.out, "Subject: %s\n", email.Subject)
	fmt.Fprintf(c.out, "Body length: %d bytes\n", len(email.Body))

	if c.verbose {
		preview := email.Body
		if len(preview) > bodyPreviewLimit {
			preview = preview[:bodyPreviewLimit] + "..."
		}
		fmt.Fprintf(c.out, "\nBody preview:\n%s\n", preview)
	}

	result, err := c.service.Process(ctx, email)
	if err != nil {
		c.logger.Error("Failed to route email", zap.Error(err))
	}

	x := result.Decision.Extraction
	fmt.Fprintf(c.out, "\n=== Extraction ===\n")
	fmt.Fprintf(c.out, "Intent: %s\n", x.Intent)
	fmt.Fprintf(c.out, "Confidence: %.4f\n", x.Confidence)
	fmt.Fprintf(c.out, "PO number: %s\n", orDash(x.Entities.PONumber))
	fmt.Fprintf(c.out, "Dates: %s\n", joinOrDash(x.Entities.Dates))
	fmt.Fprintf(c.out, "Quantities: %s\n", joinOrDash(x.Entities.Quantities))
	fmt.Fprintf(c.out, "Part numbers: %s\n", joinOrDash(x.Entities.PartNumbers))
	fmt.Fprintf(c.out, "Prices: %s\n", joinOrDash(x.Entities.Prices))
	if len(x.Anomalies) > 0 {
		anomalies := make([]string, len(x.Anomalies))
		for i, a := range x.Anomalies {
			anomalies[i] = string(a)
		}
		fmt.Fprintf(c.out, "Anomalies: %s\n", strings.Join(anomalies, ", "))
	}

	fmt.Fprintf(c.out, "\n=== Routing ===\n")
	fmt.Fprintf(c.out, "Execution ID: %s\n", result.ExecutionID)
	fmt.Fprintf(c.out, "Routed to: %s (rule %s)\n", result.Decision.TargetAgent, result.Decision.Rule)
	fmt.Fprintf(c.out, "Action: %s\n", result.Action)
	fmt.Fprintf(c.out, "Status: %s\n", result.Status)
	if result.ModelTier != "" {
		fmt.Fprintf(c.out, "Model tier: %s (cached %t)\n", result.ModelTier, result.Cached)
	}
	fmt.Fprintf(c.out, "Cost: $%.6f\n", result.Cost)
	if result.Response != "" {
		fmt.Fprintf(c.out, "Response: %s\n", result.Response)
	}
	if result.Error != "" {
		fmt.Fprintf(c.out, "Error: %s\n", result.Error)
	}
	fmt.Fprintf(c.out, "Processing time: %v\n", result.Duration)

	return result, err
}

// Start is a no-op for the CLI ingress
func (c *CLI) Start() error {
	return nil
}

// Stop is a no-op for the CLI ingress
func (c *CLI) Stop() error {
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinOrDash(values []string) string {
	return orDash(strings.Join(values, ", "))
}
