package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"watcher/internal/types"

	"go.uber.org/zap"
)

// Options defines storage options
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// BaseStorage is the shared database/sql implementation of Storage.
// Driver-specific types embed it and only adjust DSN handling and schema.
type BaseStorage struct {
	db     *sql.DB
	driver string
	opts   Options
	logger *zap.Logger
}

// NewBaseStorage opens the database and configures the connection pool
func NewBaseStorage(driver, dsn string, opts Options, logger *zap.Logger) (*BaseStorage, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &BaseStorage{
		db:     db,
		driver: driver,
		opts:   opts,
		logger: logger,
	}, nil
}

// rebind converts ? placeholders to the driver's native form
func (s *BaseStorage) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ExecContext executes a statement with the configured query timeout
func (s *BaseStorage) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	s.observe(query, time.Since(start))
	return result, err
}

// QueryContext executes a query with the configured query timeout
func (s *BaseStorage) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	s.observe(query, time.Since(start))
	return rows, err
}

// QueryRowContext executes a single-row query
func (s *BaseStorage) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// observe logs slow queries
func (s *BaseStorage) observe(query string, duration time.Duration) {
	if duration > time.Second {
		s.logger.Warn("slow query detected",
			zap.String("query", query),
			zap.Duration("duration", duration))
	}
}

// TxFn represents a transaction function
type TxFn func(*sql.Tx) error

// WithTransaction executes operations in a transaction
func (s *BaseStorage) WithTransaction(ctx context.Context, fn TxFn) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

// CreateAgent persists a new agent
func (s *BaseStorage) CreateAgent(ctx context.Context, agent *types.Agent) error {
	query := `
        INSERT INTO agents (id, name, user_id, api_key, secret, status, last_seen, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.ExecContext(ctx, query,
		agent.ID,
		agent.Name,
		agent.UserID,
		agent.APIKey,
		agent.Secret,
		agent.Status,
		agent.LastSeen,
		agent.CreatedAt,
		agent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}

	return nil
}

const agentColumns = `id, name, user_id, api_key, secret, status, last_seen, created_at, updated_at`

// scanAgent scans one agent row
func scanAgent(row interface{ Scan(...any) error }) (*types.Agent, error) {
	agent := &types.Agent{}
	err := row.Scan(
		&agent.ID,
		&agent.Name,
		&agent.UserID,
		&agent.APIKey,
		&agent.Secret,
		&agent.Status,
		&agent.LastSeen,
		&agent.CreatedAt,
		&agent.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// GetAgent retrieves an agent by id
func (s *BaseStorage) GetAgent(ctx context.Context, agentID string) (*types.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = ?`

	agent, err := scanAgent(s.QueryRowContext(ctx, query, agentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query agent: %w", err)
	}

	return agent, nil
}

// GetAgentByAPIKey retrieves an agent by its API key
func (s *BaseStorage) GetAgentByAPIKey(ctx context.Context, apiKey string) (*types.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE api_key = ?`

	agent, err := scanAgent(s.QueryRowContext(ctx, query, apiKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrAgentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query agent by api key: %w", err)
	}

	return agent, nil
}

// UpdateAgentStatus updates agent status and last seen timestamp
func (s *BaseStorage) UpdateAgentStatus(ctx context.Context, agentID string, status types.AgentStatus, lastSeen time.Time) error {
	query := `
        UPDATE agents
        SET status = ?, last_seen = ?, updated_at = ?
        WHERE id = ?`

	result, err := s.ExecContext(ctx, query, status, lastSeen, time.Now(), agentID)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return types.ErrAgentNotFound
	}

	return nil
}

// GetAgentOverviews retrieves all agents with application and downtime counts
func (s *BaseStorage) GetAgentOverviews(ctx context.Context) ([]*types.AgentOverview, error) {
	query := `
        SELECT a.id, a.name, a.user_id, a.status, a.last_seen, a.created_at, a.updated_at,
               (SELECT COUNT(*) FROM applications p WHERE p.agent_id = a.id),
               (SELECT COUNT(*) FROM downtimes d WHERE d.agent_id = a.id)
        FROM agents a
        ORDER BY a.name`

	rows, err := s.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var overviews []*types.AgentOverview
	for rows.Next() {
		o := &types.AgentOverview{}
		err := rows.Scan(
			&o.ID,
			&o.Name,
			&o.UserID,
			&o.Status,
			&o.LastSeen,
			&o.CreatedAt,
			&o.UpdatedAt,
			&o.ApplicationCount,
			&o.DowntimeCount)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		overviews = append(overviews, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return overviews, nil
}

// MarkStaleAgentsOffline marks online agents not seen since cutoff as offline
func (s *BaseStorage) MarkStaleAgentsOffline(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
        UPDATE agents
        SET status = ?, updated_at = ?
        WHERE status = ? AND last_seen < ?`

	result, err := s.ExecContext(ctx, query,
		types.AgentStatusOffline, time.Now(), types.AgentStatusOnline, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark stale agents: %w", err)
	}

	return result.RowsAffected()
}

// CreateApplication persists a new application
func (s *BaseStorage) CreateApplication(ctx context.Context, app *types.Application) error {
	query := `
        INSERT INTO applications (id, agent_id, name, port, process_name, url, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.ExecContext(ctx, query,
		app.ID,
		app.AgentID,
		app.Name,
		app.Port,
		app.ProcessName,
		app.URL,
		app.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}

	return nil
}

// GetApplication retrieves an application by id
func (s *BaseStorage) GetApplication(ctx context.Context, appID string) (*types.Application, error) {
	query := `
        SELECT id, agent_id, name, port, process_name, url, created_at
        FROM applications WHERE id = ?`

	app := &types.Application{}
	err := s.QueryRowContext(ctx, query, appID).Scan(
		&app.ID,
		&app.AgentID,
		&app.Name,
		&app.Port,
		&app.ProcessName,
		&app.URL,
		&app.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query application: %w", err)
	}

	return app, nil
}

// GetApplications retrieves all applications of an agent
func (s *BaseStorage) GetApplications(ctx context.Context, agentID string) ([]*types.Application, error) {
	query := `
        SELECT id, agent_id, name, port, process_name, url, created_at
        FROM applications WHERE agent_id = ?
        ORDER BY name`

	rows, err := s.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var apps []*types.Application
	for rows.Next() {
		app := &types.Application{}
		err := rows.Scan(
			&app.ID,
			&app.AgentID,
			&app.Name,
			&app.Port,
			&app.ProcessName,
			&app.URL,
			&app.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return apps, nil
}

// SaveMetric persists a metric observation
func (s *BaseStorage) SaveMetric(ctx context.Context, metric *types.Metric) error {
	query := `
        INSERT INTO metrics (agent_id, application_id, cpu, memory, uptime, response_time, request_count, error_count, timestamp)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var responseTime sql.NullFloat64
	if metric.ResponseTime != nil {
		responseTime = sql.NullFloat64{Float64: *metric.ResponseTime, Valid: true}
	}

	result, err := s.ExecContext(ctx, query,
		metric.AgentID,
		metric.ApplicationID,
		metric.CPU,
		metric.Memory,
		metric.Uptime,
		responseTime,
		metric.RequestCount,
		metric.ErrorCount,
		metric.Timestamp)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}

	// lib/pq does not support LastInsertId; the id is informational only
	if id, err := result.LastInsertId(); err == nil {
		metric.ID = id
	}

	return nil
}

// GetMetrics retrieves the most recent metrics of an application
func (s *BaseStorage) GetMetrics(ctx context.Context, applicationID string, limit int) ([]*types.Metric, error) {
	query := `
        SELECT id, agent_id, application_id, cpu, memory, uptime, response_time, request_count, error_count, timestamp
        FROM metrics WHERE application_id = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?`

	rows, err := s.QueryContext(ctx, query, applicationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*types.Metric
	for rows.Next() {
		m := &types.Metric{}
		var responseTime sql.NullFloat64
		err := rows.Scan(
			&m.ID,
			&m.AgentID,
			&m.ApplicationID,
			&m.CPU,
			&m.Memory,
			&m.Uptime,
			&responseTime,
			&m.RequestCount,
			&m.ErrorCount,
			&m.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		if responseTime.Valid {
			m.ResponseTime = &responseTime.Float64
		}
		metrics = append(metrics, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return metrics, nil
}

// CreateDowntime persists a downtime report. If an unresolved downtime
// already exists for the application, the report is treated as a
// continuation: the existing record is loaded into downtime and created
// is false. The check and insert run in one transaction so concurrent
// reports cannot open duplicate downtimes.
func (s *BaseStorage) CreateDowntime(ctx context.Context, downtime *types.Downtime) (bool, error) {
	created := false

	err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := s.rebind(`
            SELECT id, agent_id, application_id, start_time, end_time, reason, severity, resolved, clickup_task_id
            FROM downtimes
            WHERE application_id = ? AND resolved = ?`)

		existing := &types.Downtime{}
		var endTime sql.NullTime
		err := tx.QueryRowContext(ctx, query, downtime.ApplicationID, false).Scan(
			&existing.ID,
			&existing.AgentID,
			&existing.ApplicationID,
			&existing.StartTime,
			&endTime,
			&existing.Reason,
			&existing.Severity,
			&existing.Resolved,
			&existing.ClickupTaskID)
		if err == nil {
			if endTime.Valid {
				existing.EndTime = &endTime.Time
			}
			*downtime = *existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query open downtime: %w", err)
		}

		insert := s.rebind(`
            INSERT INTO downtimes (id, agent_id, application_id, start_time, end_time, reason, severity, resolved, clickup_task_id)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

		_, err = tx.ExecContext(ctx, insert,
			downtime.ID,
			downtime.AgentID,
			downtime.ApplicationID,
			downtime.StartTime,
			nil,
			downtime.Reason,
			downtime.Severity,
			downtime.Resolved,
			downtime.ClickupTaskID)
		if err != nil {
			return fmt.Errorf("insert downtime: %w", err)
		}

		created = true
		return nil
	})

	return created, err
}

const downtimeColumns = `
    d.id, d.agent_id, d.application_id, d.start_time, d.end_time, d.reason, d.severity, d.resolved, d.clickup_task_id,
    p.name, a.name`

// scanDowntime scans one joined downtime row
func scanDowntime(row interface{ Scan(...any) error }) (*types.Downtime, error) {
	d := &types.Downtime{}
	var endTime sql.NullTime
	var appName, agentName string

	err := row.Scan(
		&d.ID,
		&d.AgentID,
		&d.ApplicationID,
		&d.StartTime,
		&endTime,
		&d.Reason,
		&d.Severity,
		&d.Resolved,
		&d.ClickupTaskID,
		&appName,
		&agentName)
	if err != nil {
		return nil, err
	}

	if endTime.Valid {
		d.EndTime = &endTime.Time
	}
	d.Application = &types.Application{ID: d.ApplicationID, AgentID: d.AgentID, Name: appName}
	d.Agent = &types.Agent{ID: d.AgentID, Name: agentName}

	return d, nil
}

// GetDowntime retrieves a downtime with its application and agent context
func (s *BaseStorage) GetDowntime(ctx context.Context, downtimeID string) (*types.Downtime, error) {
	query := `
        SELECT ` + downtimeColumns + `
        FROM downtimes d
        JOIN applications p ON p.id = d.application_id
        JOIN agents a ON a.id = d.agent_id
        WHERE d.id = ?`

	d, err := scanDowntime(s.QueryRowContext(ctx, query, downtimeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrDowntimeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query downtime: %w", err)
	}

	return d, nil
}

// ResolveDowntime marks a downtime as resolved. Resolving an already
// resolved downtime is a no-op and returns the record unchanged.
func (s *BaseStorage) ResolveDowntime(ctx context.Context, downtimeID string, endTime time.Time) (*types.Downtime, error) {
	query := `
        UPDATE downtimes
        SET end_time = ?, resolved = ?
        WHERE id = ? AND resolved = ?`

	if _, err := s.ExecContext(ctx, query, endTime, true, downtimeID, false); err != nil {
		return nil, fmt.Errorf("resolve downtime: %w", err)
	}

	return s.GetDowntime(ctx, downtimeID)
}

// GetDowntimes retrieves downtimes matching the query, most recent first
func (s *BaseStorage) GetDowntimes(ctx context.Context, query DowntimeQuery) ([]*types.Downtime, error) {
	sb := strings.Builder{}
	sb.WriteString(`
        SELECT ` + downtimeColumns + `
        FROM downtimes d
        JOIN applications p ON p.id = d.application_id
        JOIN agents a ON a.id = d.agent_id`)

	var conds []string
	var args []any
	if query.AgentID != "" {
		conds = append(conds, "d.agent_id = ?")
		args = append(args, query.AgentID)
	}
	if query.ApplicationID != "" {
		conds = append(conds, "d.application_id = ?")
		args = append(args, query.ApplicationID)
	}
	if query.Resolved != nil {
		conds = append(conds, "d.resolved = ?")
		args = append(args, *query.Resolved)
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	sb.WriteString(" ORDER BY d.start_time DESC LIMIT ?")
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := s.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query downtimes: %w", err)
	}
	defer rows.Close()

	var downtimes []*types.Downtime
	for rows.Next() {
		d, err := scanDowntime(rows)
		if err != nil {
			return nil, fmt.Errorf("scan downtime: %w", err)
		}
		downtimes = append(downtimes, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return downtimes, nil
}

// SetDowntimeTaskID stores the external ticket id on a downtime
func (s *BaseStorage) SetDowntimeTaskID(ctx context.Context, downtimeID, taskID string) error {
	query := `UPDATE downtimes SET clickup_task_id = ? WHERE id = ?`

	result, err := s.ExecContext(ctx, query, taskID, downtimeID)
	if err != nil {
		return fmt.Errorf("set downtime task id: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return types.ErrDowntimeNotFound
	}

	return nil
}

// SaveClickupLog appends an escalation audit record
func (s *BaseStorage) SaveClickupLog(ctx context.Context, log *types.ClickupLog) error {
	query := `
        INSERT INTO clickup_logs (task_id, application_name, agent_name, message, success, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.ExecContext(ctx, query,
		log.TaskID,
		log.ApplicationName,
		log.AgentName,
		log.Message,
		log.Success,
		log.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert clickup log: %w", err)
	}

	return nil
}

// GetSummary computes the dashboard summary counts
func (s *BaseStorage) GetSummary(ctx context.Context) (*types.Summary, error) {
	summary := &types.Summary{}

	counts := []struct {
		query string
		args  []any
		dest  *int
	}{
		{`SELECT COUNT(*) FROM agents`, nil, &summary.TotalAgents},
		{`SELECT COUNT(*) FROM agents WHERE status = ?`, []any{types.AgentStatusOnline}, &summary.OnlineAgents},
		{`SELECT COUNT(*) FROM applications`, nil, &summary.TotalApplications},
		{`SELECT COUNT(*) FROM downtimes WHERE resolved = ?`, []any{false}, &summary.ActiveDowntimes},
	}

	for _, c := range counts {
		if err := s.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("summary count: %w", err)
		}
	}

	return summary, nil
}

// CleanupMetrics deletes metrics older than before
func (s *BaseStorage) CleanupMetrics(ctx context.Context, before time.Time) error {
	if _, err := s.ExecContext(ctx, `DELETE FROM metrics WHERE timestamp < ?`, before); err != nil {
		return fmt.Errorf("cleanup metrics: %w", err)
	}
	return nil
}

// Ping pings the database
func (s *BaseStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *BaseStorage) Close() error {
	return s.db.Close()
}
