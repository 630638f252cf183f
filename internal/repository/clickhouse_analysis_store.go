package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"MarketState/internal/domain/models"
	domrepo "MarketState/internal/domain/repository"
	pkgch "MarketState/pkg/clickhouse"
	applogger "MarketState/pkg/logger"
)

// AnalysisSchema returns the DDL for the analyses table. Feedback updates and
// deletes insert a newer version of the row; reads collapse with FINAL.
func AnalysisSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id            String,
            created_at    DateTime64(3, 'UTC'),
            ticker        LowCardinality(String),
            model         String,
            indicators    String,
            levels        String,
            ai_prediction String,
            state_history String,
            fb_submitted  UInt8,
            fb_success    UInt8,
            fb_remark     String,
            deleted       UInt8,
            version       UInt64
        )
        ENGINE = ReplacingMergeTree(version)
        ORDER BY id
    `, table)}
}

const analysisColumns = "id, created_at, ticker, model, indicators, levels, ai_prediction, state_history, fb_submitted, fb_success, fb_remark"

// CHAnalysisStore implements AnalysisStore backed by ClickHouse.
type CHAnalysisStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
	now   func() time.Time
}

func NewCHAnalysisStore(ch *pkgch.Client, table string) *CHAnalysisStore {
	return &CHAnalysisStore{db: ch.DB(), table: table, now: time.Now}
}

// SetLogger injects a structured logger.
func (s *CHAnalysisStore) SetLogger(l *applogger.Logger) { s.l = l }

// analysisRow is the column view of one record.
type analysisRow struct {
	ID           string
	CreatedAt    time.Time
	Ticker       string
	Model        string
	Indicators   string
	Levels       string
	AIPrediction string
	StateHistory string
	FbSubmitted  uint8
	FbSuccess    uint8
	FbRemark     string
}

func newAnalysisRow(rec models.AnalysisRecord, createdAt time.Time) (analysisRow, error) {
	ind, err := json.Marshal(rec.Indicators)
	if err != nil {
		return analysisRow{}, fmt.Errorf("encode indicators: %w", err)
	}
	lv, err := json.Marshal(rec.Levels)
	if err != nil {
		return analysisRow{}, fmt.Errorf("encode levels: %w", err)
	}
	hist := rec.StateHistory
	if hist == nil {
		hist = []models.StatePoint{}
	}
	h, err := json.Marshal(hist)
	if err != nil {
		return analysisRow{}, fmt.Errorf("encode state history: %w", err)
	}
	return analysisRow{
		ID:           rec.ID,
		CreatedAt:    createdAt.UTC(),
		Ticker:       rec.Ticker,
		Model:        rec.Model,
		Indicators:   string(ind),
		Levels:       string(lv),
		AIPrediction: rec.AIPrediction,
		StateHistory: string(h),
		FbSubmitted:  boolToUint8(rec.Feedback.Submitted),
		FbSuccess:    boolToUint8(rec.Feedback.Success),
		FbRemark:     rec.Feedback.Remark,
	}, nil
}

func (r analysisRow) record() (models.AnalysisRecord, error) {
	rec := models.AnalysisRecord{
		ID:           r.ID,
		Timestamp:    r.CreatedAt.Local().Format(models.RecordTimeLayout),
		Ticker:       r.Ticker,
		Model:        r.Model,
		AIPrediction: r.AIPrediction,
		Feedback: models.Feedback{
			Submitted: r.FbSubmitted != 0,
			Success:   r.FbSuccess != 0,
			Remark:    r.FbRemark,
		},
	}
	if err := json.Unmarshal([]byte(r.Indicators), &rec.Indicators); err != nil {
		return rec, fmt.Errorf("decode indicators: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Levels), &rec.Levels); err != nil {
		return rec, fmt.Errorf("decode levels: %w", err)
	}
	if err := json.Unmarshal([]byte(r.StateHistory), &rec.StateHistory); err != nil {
		return rec, fmt.Errorf("decode state history: %w", err)
	}
	return rec, nil
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// insert appends a row version; the highest version wins when parts merge.
func (s *CHAnalysisStore) insert(ctx context.Context, row analysisRow, deleted bool) error {
	q := fmt.Sprintf("INSERT INTO %s (%s, deleted, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table, analysisColumns)
	_, err := s.db.ExecContext(ctx, q,
		row.ID, row.CreatedAt, row.Ticker, row.Model,
		row.Indicators, row.Levels, row.AIPrediction, row.StateHistory,
		row.FbSubmitted, row.FbSuccess, row.FbRemark,
		boolToUint8(deleted), uint64(s.now().UnixNano()),
	)
	return err
}

func (s *CHAnalysisStore) Save(ctx context.Context, rec models.AnalysisRecord) (string, error) {
	start := time.Now()
	rec.ID = uuid.NewString()
	rec.Feedback = models.Feedback{}
	row, err := newAnalysisRow(rec, s.now())
	if err != nil {
		return "", err
	}
	if err := s.insert(ctx, row, false); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse save_analysis error",
				applogger.String("table", s.table),
				applogger.String("ticker", rec.Ticker),
				applogger.Error(err),
			)
		}
		return "", fmt.Errorf("save analysis: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse save_analysis ok",
			applogger.String("table", s.table),
			applogger.String("id", rec.ID),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return rec.ID, nil
}

func (s *CHAnalysisStore) query(ctx context.Context, op, where, order string, limit int, args ...interface{}) ([]models.AnalysisRecord, error) {
	start := time.Now()
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE deleted = 0%s ORDER BY created_at %s", analysisColumns, s.table, where, order)
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse "+op+" query error", applogger.String("table", s.table), applogger.Error(err))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.AnalysisRecord, 0)
	for rows.Next() {
		var r analysisRow
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Ticker, &r.Model, &r.Indicators, &r.Levels,
			&r.AIPrediction, &r.StateHistory, &r.FbSubmitted, &r.FbSuccess, &r.FbRemark); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse "+op+" scan error", applogger.String("table", s.table), applogger.Error(err))
			}
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse "+op+" ok",
			applogger.String("table", s.table),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHAnalysisStore) Recent(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	return s.query(ctx, "recent_analyses", "", "DESC", limit)
}

func (s *CHAnalysisStore) Successful(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	return s.query(ctx, "successful_analyses", " AND fb_submitted = 1 AND fb_success = 1", "ASC", limit)
}

func (s *CHAnalysisStore) Failed(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	return s.query(ctx, "failed_analyses", " AND fb_submitted = 1 AND fb_success = 0", "ASC", limit)
}

func (s *CHAnalysisStore) get(ctx context.Context, id string) (models.AnalysisRecord, time.Time, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE deleted = 0 AND id = ? LIMIT 1", analysisColumns, s.table)
	var r analysisRow
	err := s.db.QueryRowContext(ctx, q, id).Scan(&r.ID, &r.CreatedAt, &r.Ticker, &r.Model, &r.Indicators, &r.Levels,
		&r.AIPrediction, &r.StateHistory, &r.FbSubmitted, &r.FbSuccess, &r.FbRemark)
	if errors.Is(err, sql.ErrNoRows) {
		return models.AnalysisRecord{}, time.Time{}, domrepo.ErrNotFound
	}
	if err != nil {
		return models.AnalysisRecord{}, time.Time{}, fmt.Errorf("get analysis: %w", err)
	}
	rec, err := r.record()
	return rec, r.CreatedAt, err
}

func (s *CHAnalysisStore) UpdateFeedback(ctx context.Context, id string, success bool, remark string) error {
	rec, created, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	rec.Feedback = models.Feedback{Submitted: true, Success: success, Remark: remark}
	row, err := newAnalysisRow(rec, created)
	if err != nil {
		return err
	}
	if err := s.insert(ctx, row, false); err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	return nil
}

func (s *CHAnalysisStore) Delete(ctx context.Context, id string) error {
	rec, created, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	row, err := newAnalysisRow(rec, created)
	if err != nil {
		return err
	}
	if err := s.insert(ctx, row, true); err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	return nil
}

// Close is a no-op; the connection pool belongs to pkg/clickhouse.
func (s *CHAnalysisStore) Close() error { return nil }

var _ domrepo.AnalysisStore = (*CHAnalysisStore)(nil)
