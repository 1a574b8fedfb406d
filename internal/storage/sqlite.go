package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/pama/internal/cds"
	"github.com/hyperjump/pama/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithLogger sets the logger used for dispatch failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStorage) { s.logger = l }
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private in-memory database.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStorage{db: db, path: dbPath, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS drafts (
		id TEXT PRIMARY KEY,
		patient_id TEXT NOT NULL,
		study TEXT,
		reasons TEXT NOT NULL,
		rating TEXT NOT NULL DEFAULT '',
		rating_resource_id TEXT NOT NULL DEFAULT '',
		signed INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_drafts_patient_id ON drafts(patient_id);
	CREATE INDEX IF NOT EXISTS idx_drafts_created_at ON drafts(created_at);

	CREATE TABLE IF NOT EXISTS ratings (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		draft_id TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		rating TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (draft_id) REFERENCES drafts(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_ratings_draft_id ON ratings(draft_id);
	`
	_, err := db.Exec(schema)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

const draftColumns = `id, patient_id, study, reasons, rating, rating_resource_id, signed, created_at, updated_at`

func scanDraft(row rowScanner) (*models.DraftOrder, error) {
	var d models.DraftOrder
	var study sql.NullString
	var reasons, rating string
	if err := row.Scan(&d.ID, &d.Patient.ID, &study, &reasons, &rating, &d.RatingSource, &d.Signed, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Rating = models.Rating(rating)
	if study.Valid && study.String != "" {
		var c models.Coding
		if err := json.Unmarshal([]byte(study.String), &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal study: %w", err)
		}
		d.ServiceRequest.StudyCoding = &c
	}
	if err := json.Unmarshal([]byte(reasons), &d.ServiceRequest.ReasonCodings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reasons: %w", err)
	}
	if d.ServiceRequest.ReasonCodings == nil {
		d.ServiceRequest.ReasonCodings = []models.Coding{}
	}
	return &d, nil
}

func encodeDraft(d *models.DraftOrder) (study sql.NullString, reasons string, err error) {
	if d.ServiceRequest.StudyCoding != nil {
		b, err := json.Marshal(d.ServiceRequest.StudyCoding)
		if err != nil {
			return study, "", fmt.Errorf("failed to marshal study: %w", err)
		}
		study = sql.NullString{String: string(b), Valid: true}
	}
	rs := d.ServiceRequest.ReasonCodings
	if rs == nil {
		rs = []models.Coding{}
	}
	b, err := json.Marshal(rs)
	if err != nil {
		return study, "", fmt.Errorf("failed to marshal reasons: %w", err)
	}
	return study, string(b), nil
}

// CreateDraft inserts an empty draft for patientID.
func (s *SQLiteStorage) CreateDraft(ctx context.Context, patientID string) (*models.DraftOrder, error) {
	if patientID == "" {
		return nil, ErrPatientRequired
	}
	now := time.Now().UTC()
	d := &models.DraftOrder{
		ID:             uuid.NewString(),
		Patient:        models.Patient{ID: patientID},
		ServiceRequest: models.ServiceRequestDraft{ReasonCodings: []models.Coding{}},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, patient_id, study, reasons, created_at, updated_at)
		 VALUES (?, ?, NULL, '[]', ?, ?)`,
		d.ID, d.Patient.ID, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert draft: %w", err)
	}
	return d, nil
}

// GetDraft returns a draft by ID.
func (s *SQLiteStorage) GetDraft(ctx context.Context, id string) (*models.DraftOrder, error) {
	d, err := scanDraft(s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	return d, err
}

// ListDrafts returns drafts with offset and limit, newest first.
func (s *SQLiteStorage) ListDrafts(ctx context.Context, offset, limit int) ([]*models.DraftOrder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+draftColumns+` FROM drafts ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drafts := []*models.DraftOrder{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

// DeleteDraft removes a draft and its rating log.
func (s *SQLiteStorage) DeleteDraft(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ratings WHERE draft_id = ?`, id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM drafts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	return tx.Commit()
}

// Apply reduces action into draft id inside a transaction. Applied ratings are also appended
// to the rating log.
func (s *SQLiteStorage) Apply(ctx context.Context, id string, action models.Action) (*models.DraftOrder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	d, err := scanDraft(tx.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM drafts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDraftNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if err := Reduce(d, action); err != nil {
		return nil, err
	}
	d.UpdatedAt = time.Now().UTC()

	study, reasons, err := encodeDraft(d)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE drafts SET study = ?, reasons = ?, rating = ?, rating_resource_id = ?, signed = ?, updated_at = ?
		 WHERE id = ?`,
		study, reasons, string(d.Rating), d.RatingSource, d.Signed, d.UpdatedAt, d.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}

	if action.Type == models.ActionApplyPamaRating {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ratings (draft_id, resource_id, rating, applied_at) VALUES (?, ?, ?, ?)`,
			d.ID, action.ResourceID, string(action.Rating), d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to log rating: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return d, nil
}

// ListRatings returns the ratings applied to a draft in arrival order.
func (s *SQLiteStorage) ListRatings(ctx context.Context, draftID string) ([]RatingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT draft_id, resource_id, rating, applied_at FROM ratings WHERE draft_id = ? ORDER BY seq`,
		draftID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []RatingRecord{}
	for rows.Next() {
		var r RatingRecord
		var rating string
		if err := rows.Scan(&r.DraftID, &r.ResourceID, &rating, &r.AppliedAt); err != nil {
			return nil, err
		}
		r.Rating = models.Rating(rating)
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountDrafts returns the total number of drafts.
func (s *SQLiteStorage) CountDrafts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drafts`).Scan(&count)
	return count, err
}

// Size returns the on-disk size of the database, or 0 for an in-memory one.
func (s *SQLiteStorage) Size() (int64, error) {
	if s.path == ":memory:" {
		return 0, nil
	}
	return DatabaseSize(s.path)
}

// Dispatcher returns a dispatcher bound to draft id. Failed updates are logged and dropped:
// the handler side of dispatch never sees an error.
func (s *SQLiteStorage) Dispatcher(ctx context.Context, id string) cds.Dispatcher {
	return cds.DispatchFunc(func(a models.Action) {
		if _, err := s.Apply(ctx, id, a); err != nil {
			s.logger.Warn("dispatch failed",
				zap.String("draft_id", id),
				zap.String("action", string(a.Type)),
				zap.Error(err))
		}
	})
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
