// Package ledger pushes approved category assignments back to the
// accounting system over NATS. Delivery is fire-and-forget: the decision
// pipeline never blocks on the ledger being reachable.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/opencpa/ledgerpilot/internal/common"
	"github.com/opencpa/ledgerpilot/internal/service"
)

// Config controls the NATS connection.
type Config struct {
	URL            string
	Subject        string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

// DefaultConfig returns sensible connection defaults.
func DefaultConfig() Config {
	return Config{
		Subject:        "ledgerpilot.assignments",
		ConnectTimeout: 2 * time.Second,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  60,
	}
}

// Publisher implements service.LedgerSync over a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	logger  *slog.Logger
	subject string
}

var _ service.LedgerSync = (*Publisher)(nil)

// assignmentEvent is the wire payload consumed by the ledger bridge.
type assignmentEvent struct {
	TenantID      string    `json:"tenantId"`
	TransactionID string    `json:"transactionId"`
	CategoryID    int64     `json:"categoryId"`
	AssignedAt    time.Time `json:"assignedAt"`
}

// NewPublisher connects to NATS. The connection retries in the background,
// so a ledger outage at startup does not block the service.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("ledger sync: %w: url is required", common.ErrMissingConfig)
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultConfig().Subject
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConfig().ConnectTimeout
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = DefaultConfig().ReconnectWait
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = DefaultConfig().MaxReconnects
	}
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		cfg.URL,
		nats.Name("ledgerpilot"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("ledger sync disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("ledger sync reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, &common.ExternalServiceError{Service: "ledger sync", Err: err}
	}

	return &Publisher{conn: conn, subject: cfg.Subject, logger: logger}, nil
}

// PushCategoryAssignment publishes one assignment event. Errors are
// returned for the caller to log; they must not fail the pipeline.
func (p *Publisher) PushCategoryAssignment(ctx context.Context, tenantID, transactionID string, categoryID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	event := assignmentEvent{
		TenantID:      tenantID,
		TransactionID: transactionID,
		CategoryID:    categoryID,
		AssignedAt:    time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode assignment event: %w", err)
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		return &common.ExternalServiceError{Service: "ledger sync", Err: err}
	}

	p.logger.Debug("pushed category assignment",
		"tenant_id", tenantID,
		"transaction_id", transactionID,
		"category_id", categoryID)
	return nil
}

// Close drains the connection so queued events flush before shutdown.
func (p *Publisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("ledger sync drain failed", "error", err)
		p.conn.Close()
	}
}
