// Package services implements the durable prompt repository: CRUD over
// prompt_history with a single serialized connection, guardrail
// JSON handling with corruption sentinels, statistics and retention sweeps.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/promptforge-dev/promptforge/pkg/database"
	"github.com/promptforge-dev/promptforge/pkg/models"
)

// PromptHistoryService persists prompt records. All operations are serialized
// under a single mutex, matching the single-connection SQLite model — an
// intentional throughput trade-off for correctness.
type PromptHistoryService struct {
	client *database.Client
	mu     sync.Mutex
}

// NewPromptHistoryService creates the service over the shared database client.
func NewPromptHistoryService(client *database.Client) *PromptHistoryService {
	return &PromptHistoryService{client: client}
}

// historyRow mirrors one prompt_history row; guardrails stays serialized.
type historyRow struct {
	ID             int64    `db:"id"`
	CreatedAt      string   `db:"created_at"`
	OriginalIdea   string   `db:"original_idea"`
	Context        string   `db:"context"`
	ImprovedPrompt string   `db:"improved_prompt"`
	Role           string   `db:"role"`
	Directive      string   `db:"directive"`
	Framework      string   `db:"framework"`
	Guardrails     string   `db:"guardrails"`
	Reasoning      *string  `db:"reasoning"`
	Confidence     *float64 `db:"confidence"`
	Backend        string   `db:"backend"`
	Model          string   `db:"model"`
	Provider       string   `db:"provider"`
	LatencyMS      *int64   `db:"latency_ms"`
}

// HistoryFilters narrow FindRecent queries.
type HistoryFilters struct {
	Backend  string
	Provider string
	Limit    int
	Offset   int
}

// Statistics summarizes the stored history.
type Statistics struct {
	Total               int64            `json:"total"`
	AvgConfidence       *float64         `json:"avg_confidence"`
	AvgLatencyMS        *float64         `json:"avg_latency_ms"`
	BackendDistribution map[string]int64 `json:"backend_distribution"`
}

// Save validates and inserts a record, returning the generated id.
// created_at is set to wall-clock UTC if unset.
func (s *PromptHistoryService) Save(ctx context.Context, rec *models.PromptRecord) (int64, error) {
	if err := validateRecord(rec); err != nil {
		return 0, err
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = models.NowUTC()
	}

	guardrails, err := json.Marshal(rec.Guardrails)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize guardrails: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.client.DB(ctx)
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO prompt_history
			(created_at, original_idea, context, improved_prompt, role, directive,
			 framework, guardrails, reasoning, confidence, backend, model, provider, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CreatedAt, rec.OriginalIdea, rec.Context, rec.ImprovedPrompt,
		rec.Role, rec.Directive, rec.Framework, string(guardrails),
		rec.Reasoning, rec.Confidence, rec.Backend, rec.Model, rec.Provider, rec.LatencyMS)
	if err != nil {
		return 0, fmt.Errorf("failed to insert prompt record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// FindByID returns one record or ErrNotFound.
func (s *PromptHistoryService) FindByID(ctx context.Context, id int64) (*models.PromptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.client.DB(ctx)
	if err != nil {
		return nil, err
	}

	var row historyRow
	err = db.GetContext(ctx, &row, "SELECT * FROM prompt_history WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt record: %w", err)
	}
	return row.toRecord(), nil
}

// FindRecent returns records ordered by created_at descending.
func (s *PromptHistoryService) FindRecent(ctx context.Context, filters HistoryFilters) ([]*models.PromptRecord, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	}

	query := "SELECT * FROM prompt_history"
	var conditions []string
	var args []any
	if filters.Backend != "" {
		conditions = append(conditions, "backend = ?")
		args = append(args, filters.Backend)
	}
	if filters.Provider != "" {
		conditions = append(conditions, "provider = ?")
		args = append(args, filters.Provider)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filters.Limit, filters.Offset)

	return s.selectRecords(ctx, query, args...)
}

// Search matches the query against ideas and prompts.
func (s *PromptHistoryService) Search(ctx context.Context, query string, limit int) ([]*models.PromptRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.TrimSpace(query) + "%"

	return s.selectRecords(ctx, `
		SELECT * FROM prompt_history
		WHERE original_idea LIKE ? OR improved_prompt LIKE ?
		ORDER BY created_at DESC, id DESC LIMIT ?`,
		pattern, pattern, limit)
}

func (s *PromptHistoryService) selectRecords(ctx context.Context, query string, args ...any) ([]*models.PromptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.client.DB(ctx)
	if err != nil {
		return nil, err
	}

	var rows []historyRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query prompt history: %w", err)
	}

	out := make([]*models.PromptRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toRecord())
	}
	return out, nil
}

// DeleteOldRecords removes rows older than the given number of days and
// returns the count removed.
func (s *PromptHistoryService) DeleteOldRecords(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, NewValidationError("days", "must be positive")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(time.RFC3339)

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.client.DB(ctx)
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx, "DELETE FROM prompt_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old records: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted records: %w", err)
	}
	if count > 0 {
		slog.Info("Retention sweep removed records", "count", count, "days", days)
	}
	return count, nil
}

// GetStatistics aggregates totals, averages and the backend distribution.
func (s *PromptHistoryService) GetStatistics(ctx context.Context) (*Statistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.client.DB(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{BackendDistribution: make(map[string]int64)}

	var agg struct {
		Total         int64    `db:"total"`
		AvgConfidence *float64 `db:"avg_confidence"`
		AvgLatencyMS  *float64 `db:"avg_latency_ms"`
	}
	err = db.GetContext(ctx, &agg, `
		SELECT COUNT(*) AS total,
		       AVG(confidence) AS avg_confidence,
		       AVG(latency_ms) AS avg_latency_ms
		FROM prompt_history`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate statistics: %w", err)
	}
	stats.Total = agg.Total
	stats.AvgConfidence = agg.AvgConfidence
	stats.AvgLatencyMS = agg.AvgLatencyMS

	rows, err := db.QueryxContext(ctx, "SELECT backend, COUNT(*) FROM prompt_history GROUP BY backend")
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate backend distribution: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var backend string
		var count int64
		if err := rows.Scan(&backend, &count); err != nil {
			return nil, fmt.Errorf("failed to scan backend distribution: %w", err)
		}
		stats.BackendDistribution[backend] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate backend distribution: %w", err)
	}

	return stats, nil
}

// Close releases the underlying connection.
func (s *PromptHistoryService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Close()
}

// toRecord converts a row, substituting the corruption sentinel when the
// stored guardrails JSON cannot be parsed. Reads never raise for bad data.
func (r *historyRow) toRecord() *models.PromptRecord {
	var guardrails []string
	if err := json.Unmarshal([]byte(r.Guardrails), &guardrails); err != nil {
		slog.Warn("Corrupted guardrails column, substituting sentinel",
			"record_id", r.ID, "error", err)
		guardrails = models.CorruptedGuardrailsSentinel
	}

	return &models.PromptRecord{
		ID:             r.ID,
		CreatedAt:      r.CreatedAt,
		OriginalIdea:   r.OriginalIdea,
		Context:        r.Context,
		ImprovedPrompt: r.ImprovedPrompt,
		Role:           r.Role,
		Directive:      r.Directive,
		Framework:      r.Framework,
		Guardrails:     guardrails,
		Reasoning:      r.Reasoning,
		Confidence:     r.Confidence,
		Backend:        r.Backend,
		Model:          r.Model,
		Provider:       r.Provider,
		LatencyMS:      r.LatencyMS,
	}
}

// validateRecord enforces the persistence invariants.
func validateRecord(rec *models.PromptRecord) error {
	if rec == nil {
		return NewValidationError("record", "must not be nil")
	}
	if strings.TrimSpace(rec.OriginalIdea) == "" {
		return NewValidationError("original_idea", "must not be empty")
	}
	if strings.TrimSpace(rec.ImprovedPrompt) == "" {
		return NewValidationError("improved_prompt", "must not be empty")
	}
	if rec.Confidence != nil && (*rec.Confidence < 0 || *rec.Confidence > 1) {
		return NewValidationError("confidence", "must be within [0,1]")
	}
	if rec.LatencyMS != nil && *rec.LatencyMS < 0 {
		return NewValidationError("latency_ms", "must not be negative")
	}
	return nil
}
