// Package service implements the monitoring state machine behind the HTTP API.
package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sync"
	"time"

	"watcher/internal/server/clickup"
	"watcher/internal/server/storage"
	"watcher/internal/types"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config represents the background monitoring configuration
type Config struct {
	OfflineThreshold time.Duration `mapstructure:"offline_threshold"`
	CheckInterval    time.Duration `mapstructure:"check_interval"`
}

// Service coordinates storage, the escalation bridge and background sweeps
type Service struct {
	store   storage.Storage
	clickup *clickup.Client
	cfg     Config

	metricsRetention time.Duration
	pruneInterval    time.Duration

	logger *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a service instance
func NewService(store storage.Storage, escalator *clickup.Client, cfg Config, storeCfg *storage.Config, logger *zap.Logger) *Service {
	if cfg.OfflineThreshold <= 0 {
		cfg.OfflineThreshold = 5 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}

	s := &Service{
		store:   store,
		clickup: escalator,
		cfg:     cfg,
		logger:  logger,
	}
	if storeCfg != nil {
		s.metricsRetention = storeCfg.MetricsRetention
		s.pruneInterval = storeCfg.PruneInterval
	}
	return s
}

// RegisterAgent creates an agent with a fresh credential pair. The returned
// agent carries the plaintext credentials; they are not retrievable again.
func (s *Service) RegisterAgent(ctx context.Context, name, userID string) (*types.Agent, error) {
	now := time.Now().UTC()
	agent := &types.Agent{
		ID:        uuid.NewString(),
		Name:      name,
		UserID:    userID,
		APIKey:    uuid.NewString(),
		Secret:    uuid.NewString(),
		Status:    types.AgentStatusOffline,
		LastSeen:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("register agent: %w", err)
	}

	s.logger.Info("registered agent",
		zap.String("agent_id", agent.ID),
		zap.String("name", agent.Name))

	return agent, nil
}

// Authenticate verifies an api key and secret pair against the stored agent
func (s *Service) Authenticate(ctx context.Context, apiKey, secret string) (*types.Agent, error) {
	agent, err := s.store.GetAgentByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, types.ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare([]byte(agent.Secret), []byte(secret)) != 1 {
		return nil, types.ErrInvalidCredentials
	}

	return agent, nil
}

// Heartbeat records a liveness signal. An empty status defaults to online.
func (s *Service) Heartbeat(ctx context.Context, agentID string, status types.AgentStatus) (*types.Agent, error) {
	if status == "" {
		status = types.AgentStatusOnline
	}
	if !status.Valid() {
		return nil, fmt.Errorf("invalid agent status %q", status)
	}

	if err := s.store.UpdateAgentStatus(ctx, agentID, status, time.Now().UTC()); err != nil {
		return nil, err
	}

	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return agent.Redact(), nil
}

// AgentDetail returns an agent with its applications, credentials redacted
func (s *Service) AgentDetail(ctx context.Context, agentID string) (*types.Agent, error) {
	agent, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	apps, err := s.store.GetApplications(ctx, agentID)
	if err != nil {
		return nil, err
	}
	agent.Applications = apps

	return agent.Redact(), nil
}

// RegisterApplication creates a monitoring target under an agent
func (s *Service) RegisterApplication(ctx context.Context, agentID, name string, port int, processName, url string) (*types.Application, error) {
	if _, err := s.store.GetAgent(ctx, agentID); err != nil {
		return nil, err
	}

	app := &types.Application{
		ID:          uuid.NewString(),
		AgentID:     agentID,
		Name:        name,
		Port:        port,
		ProcessName: processName,
		URL:         url,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.store.CreateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("register application: %w", err)
	}

	return app, nil
}

// Applications lists an agent's monitoring targets
func (s *Service) Applications(ctx context.Context, agentID string) ([]*types.Application, error) {
	return s.store.GetApplications(ctx, agentID)
}

// SubmitMetric persists an observation and marks the agent online.
// The application must belong to the submitting agent.
func (s *Service) SubmitMetric(ctx context.Context, agentID string, metric *types.Metric) (*types.Metric, error) {
	app, err := s.store.GetApplication(ctx, metric.ApplicationID)
	if err != nil {
		return nil, err
	}
	if app.AgentID != agentID {
		return nil, types.ErrApplicationNotFound
	}

	metric.AgentID = agentID
	metric.Timestamp = time.Now().UTC()

	if err := s.store.SaveMetric(ctx, metric); err != nil {
		return nil, fmt.Errorf("submit metric: %w", err)
	}

	// any authenticated submission is a liveness signal
	if err := s.store.UpdateAgentStatus(ctx, agentID, types.AgentStatusOnline, metric.Timestamp); err != nil {
		s.logger.Warn("failed to update agent status",
			zap.String("agent_id", agentID),
			zap.Error(err))
	}

	return metric, nil
}

// Metrics returns the most recent observations of an application
func (s *Service) Metrics(ctx context.Context, applicationID string, limit int) ([]*types.Metric, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.store.GetMetrics(ctx, applicationID, limit)
}

// ReportDowntime records that an application's process was not found.
// If an unresolved downtime already exists for the application, that record
// is returned and created is false; escalation runs only for new downtimes.
func (s *Service) ReportDowntime(ctx context.Context, agentID, applicationID, reason string, severity types.Severity) (*types.Downtime, bool, error) {
	app, err := s.store.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, false, err
	}
	if app.AgentID != agentID {
		return nil, false, types.ErrApplicationNotFound
	}

	if severity == "" {
		severity = types.SeverityMedium
	}
	if !severity.Valid() {
		return nil, false, fmt.Errorf("invalid severity %q", severity)
	}

	downtime := &types.Downtime{
		ID:            uuid.NewString(),
		AgentID:       agentID,
		ApplicationID: applicationID,
		StartTime:     time.Now().UTC(),
		Reason:        reason,
		Severity:      severity,
	}

	created, err := s.store.CreateDowntime(ctx, downtime)
	if err != nil {
		return nil, false, fmt.Errorf("report downtime: %w", err)
	}

	if created {
		s.logger.Warn("downtime reported",
			zap.String("application", app.Name),
			zap.String("agent_id", agentID),
			zap.String("severity", string(downtime.Severity)))
		s.escalate(ctx, downtime.ID)

		// pick up the task id and joined context set during escalation
		if full, err := s.store.GetDowntime(ctx, downtime.ID); err == nil {
			downtime = full
		}
	}

	return downtime, created, nil
}

// escalate creates an external ticket for a new downtime. One-shot: a
// failure is logged and the downtime keeps an empty task id.
func (s *Service) escalate(ctx context.Context, downtimeID string) {
	if s.clickup == nil || !s.clickup.Enabled() {
		return
	}

	downtime, err := s.store.GetDowntime(ctx, downtimeID)
	if err != nil {
		s.logger.Error("failed to load downtime for escalation",
			zap.String("downtime_id", downtimeID),
			zap.Error(err))
		return
	}

	taskID, err := s.clickup.CreateTask(ctx, downtime)
	if err != nil {
		s.logger.Error("escalation failed",
			zap.String("downtime_id", downtimeID),
			zap.Error(err))
		return
	}

	if err := s.store.SetDowntimeTaskID(ctx, downtimeID, taskID); err != nil {
		s.logger.Error("failed to store task id",
			zap.String("downtime_id", downtimeID),
			zap.String("task_id", taskID),
			zap.Error(err))
	}

	if err := s.store.SaveClickupLog(ctx, &types.ClickupLog{
		TaskID:          taskID,
		ApplicationName: downtime.Application.Name,
		AgentName:       downtime.Agent.Name,
		Message:         fmt.Sprintf("created task %s for downtime %s", taskID, downtimeID),
		Success:         true,
		CreatedAt:       time.Now().UTC(),
	}); err != nil {
		s.logger.Error("failed to save escalation log", zap.Error(err))
	}
}

// ResolveDowntime closes a downtime. Idempotent: resolving an already
// resolved downtime returns it unchanged.
func (s *Service) ResolveDowntime(ctx context.Context, downtimeID string) (*types.Downtime, error) {
	return s.store.ResolveDowntime(ctx, downtimeID, time.Now().UTC())
}

// Downtimes lists downtimes matching the query
func (s *Service) Downtimes(ctx context.Context, query storage.DowntimeQuery) ([]*types.Downtime, error) {
	return s.store.GetDowntimes(ctx, query)
}

// DashboardAgents lists all agents with application and downtime counts
func (s *Service) DashboardAgents(ctx context.Context) ([]*types.AgentOverview, error) {
	return s.store.GetAgentOverviews(ctx)
}

// Summary returns the dashboard summary counts
func (s *Service) Summary(ctx context.Context) (*types.Summary, error) {
	return s.store.GetSummary(ctx)
}

// Ping checks storage health
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Start launches the staleness sweep and, when retention is configured,
// the metrics pruning loop
func (s *Service) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.sweepLoop(ctx)

	if s.metricsRetention > 0 {
		s.wg.Add(1)
		go s.pruneLoop(ctx)
	}
}

// Stop cancels the background loops and waits for them to exit
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// sweepLoop periodically marks agents offline when their last heartbeat
// is older than the offline threshold
func (s *Service) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-s.cfg.OfflineThreshold)
			n, err := s.store.MarkStaleAgentsOffline(ctx, cutoff)
			if err != nil {
				s.logger.Error("staleness sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("marked stale agents offline", zap.Int64("count", n))
			}
		}
	}
}

// pruneLoop periodically deletes metrics older than the retention window
func (s *Service) pruneLoop(ctx context.Context) {
	defer s.wg.Done()

	interval := s.pruneInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before := time.Now().UTC().Add(-s.metricsRetention)
			if err := s.store.CleanupMetrics(ctx, before); err != nil {
				s.logger.Error("metrics pruning failed", zap.Error(err))
			}
		}
	}
}
