// Package agent implements the per-host monitoring runtime loop.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"watcher/internal/agent/client"
	"watcher/internal/agent/config"
	"watcher/internal/agent/probe"
	"watcher/internal/types"

	"go.uber.org/zap"
)

// target represents a registered monitoring target
type target struct {
	applicationID string
	config.Target
}

// Agent drives the heartbeat and collection schedules
type Agent struct {
	cfg    *config.Config
	client *client.Client
	prober probe.Prober
	logger *zap.Logger

	// written once during Start, read by the collect loop
	targets []target

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAgent creates an agent runtime
func NewAgent(cfg *config.Config, cl *client.Client, prober probe.Prober, logger *zap.Logger) *Agent {
	return &Agent{
		cfg:    cfg,
		client: cl,
		prober: prober,
		logger: logger,
	}
}

// Start registers the monitoring targets and launches both schedules.
// A target that fails to register is logged and skipped; it is not
// collected for until the agent restarts.
func (a *Agent) Start(ctx context.Context) error {
	parsed, err := a.cfg.ParsedTargets()
	if err != nil {
		return fmt.Errorf("parse targets: %w", err)
	}

	for _, t := range parsed {
		url := fmt.Sprintf("http://localhost:%d", t.Port)
		app, err := a.client.RegisterApplication(ctx, t, url)
		if err != nil {
			a.logger.Error("failed to register application",
				zap.String("name", t.Name),
				zap.Error(err))
			continue
		}

		a.targets = append(a.targets, target{applicationID: app.ID, Target: t})
		a.logger.Info("registered application",
			zap.String("name", t.Name),
			zap.String("application_id", app.ID))
	}

	ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(2)
	go a.heartbeatLoop(ctx)
	go a.collectLoop(ctx)

	return nil
}

// Stop cancels both schedules. In-flight calls are not awaited beyond
// their own HTTP timeouts.
func (a *Agent) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

// heartbeatLoop posts a liveness signal on a fixed interval
func (a *Agent) heartbeatLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.Monitor.HeartbeatInterval)
	defer ticker.Stop()

	// an immediate first beat so the server sees the agent without
	// waiting a full interval
	a.heartbeat(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.heartbeat(ctx)
		}
	}
}

// heartbeat posts one liveness signal; failures self-heal on the next tick
func (a *Agent) heartbeat(ctx context.Context) {
	if err := a.client.Heartbeat(ctx); err != nil {
		a.logger.Error("heartbeat failed", zap.Error(err))
	}
}

// collectLoop runs a collection pass on a fixed interval
func (a *Agent) collectLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.Monitor.CollectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.collect(ctx)
		}
	}
}

// collect probes every registered target once. A found process yields a
// metric; a missing one yields a downtime report. Either call failing is
// logged and the pass moves on to the next target.
func (a *Agent) collect(ctx context.Context) {
	for _, t := range a.targets {
		info, err := a.prober.Find(ctx, t.ProcessName)

		if errors.Is(err, probe.ErrProcessNotFound) {
			a.logger.Warn("process not found",
				zap.String("name", t.Name),
				zap.String("process_name", t.ProcessName))

			if err := a.client.ReportDowntime(ctx, t.applicationID,
				"Process not found", types.SeverityHigh); err != nil {
				a.logger.Error("failed to report downtime",
					zap.String("name", t.Name),
					zap.Error(err))
			}
			continue
		}
		if err != nil {
			a.logger.Error("probe failed",
				zap.String("name", t.Name),
				zap.Error(err))
			continue
		}

		// uptime is agent-observed wall-clock at sample time, not true
		// process runtime
		uptime := float64(time.Now().Unix())

		if err := a.client.SubmitMetric(ctx, t.applicationID,
			info.CPUPercent, info.MemoryMB, uptime); err != nil {
			a.logger.Error("failed to submit metric",
				zap.String("name", t.Name),
				zap.Error(err))
		}
	}
}
