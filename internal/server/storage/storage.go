package storage

import (
	"context"
	"fmt"
	"time"

	"watcher/internal/types"

	"go.uber.org/zap"
)

// Storage defines the persistence interface for the server
type Storage interface {
	// Agents

	CreateAgent(ctx context.Context, agent *types.Agent) error
	GetAgent(ctx context.Context, agentID string) (*types.Agent, error)
	GetAgentByAPIKey(ctx context.Context, apiKey string) (*types.Agent, error)
	UpdateAgentStatus(ctx context.Context, agentID string, status types.AgentStatus, lastSeen time.Time) error
	GetAgentOverviews(ctx context.Context) ([]*types.AgentOverview, error)
	MarkStaleAgentsOffline(ctx context.Context, cutoff time.Time) (int64, error)

	// Applications

	CreateApplication(ctx context.Context, app *types.Application) error
	GetApplication(ctx context.Context, appID string) (*types.Application, error)
	GetApplications(ctx context.Context, agentID string) ([]*types.Application, error)

	// Metrics

	SaveMetric(ctx context.Context, metric *types.Metric) error
	GetMetrics(ctx context.Context, applicationID string, limit int) ([]*types.Metric, error)

	// Downtimes

	CreateDowntime(ctx context.Context, downtime *types.Downtime) (created bool, err error)
	GetDowntime(ctx context.Context, downtimeID string) (*types.Downtime, error)
	ResolveDowntime(ctx context.Context, downtimeID string, endTime time.Time) (*types.Downtime, error)
	GetDowntimes(ctx context.Context, query DowntimeQuery) ([]*types.Downtime, error)
	SetDowntimeTaskID(ctx context.Context, downtimeID, taskID string) error
	SaveClickupLog(ctx context.Context, log *types.ClickupLog) error

	// Dashboard

	GetSummary(ctx context.Context) (*types.Summary, error)

	// Maintenance

	CleanupMetrics(ctx context.Context, before time.Time) error
	Ping(ctx context.Context) error
	Close() error
}

// DowntimeQuery represents filters for listing downtimes
type DowntimeQuery struct {
	AgentID       string
	ApplicationID string
	Resolved      *bool
	Limit         int
}

// Config represents the storage configuration
type Config struct {
	Driver           string        `mapstructure:"driver"` // sqlite, mysql, postgres
	DSN              string        `mapstructure:"dsn"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	QueryTimeout     time.Duration `mapstructure:"query_timeout"`
	MetricsRetention time.Duration `mapstructure:"metrics_retention"`
	PruneInterval    time.Duration `mapstructure:"prune_interval"`
}

// NewStorage creates a storage instance based on the configured driver
func NewStorage(cfg *Config, logger *zap.Logger) (Storage, error) {
	opts := Options{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		QueryTimeout:    30 * time.Second,
	}

	if cfg.MaxOpenConns > 0 {
		opts.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		opts.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.ConnMaxLifetime > 0 {
		opts.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.QueryTimeout > 0 {
		opts.QueryTimeout = cfg.QueryTimeout
	}

	switch cfg.Driver {
	case "sqlite":
		return NewSQLiteStorage(cfg.DSN, opts, logger)
	case "mysql":
		return NewMySQLStorage(cfg.DSN, opts, logger)
	case "postgres":
		return NewPostgresStorage(cfg.DSN, opts, logger)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidDriver, cfg.Driver)
	}
}
