package repository

import (
	"context"
	"database/sql"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/kdashto/spinwheel/internal/models"
)

// Repository provides data access methods
type Repository struct {
	db    *sql.DB
	newID func() (string, error)
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db, newID: defaultID}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func defaultID() (string, error) {
	return gonanoid.New()
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS spin_meta (
			user_id TEXT PRIMARY KEY,
			spins_count INTEGER NOT NULL DEFAULT 0,
			last_winner_name TEXT NOT NULL DEFAULT '',
			last_spin_time INTEGER,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS spin_history (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			segment_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			color TEXT,
			value TEXT,
			spin_number INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_user ON spin_history(user_id, created_at)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// Times are stored as unix milliseconds
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ==================== Spin Meta Methods ====================

// GetSpinMeta retrieves the spin record for a user
func (r *Repository) GetSpinMeta(ctx context.Context, userID string) (*models.SpinMeta, error) {
	var (
		meta      models.SpinMeta
		lastSpin  sql.NullInt64
		updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, spins_count, last_winner_name, last_spin_time, updated_at
		FROM spin_meta WHERE user_id = ?
	`, userID).Scan(&meta.UserID, &meta.SpinsCount, &meta.LastWinnerName, &lastSpin, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if lastSpin.Valid {
		t := fromMillis(lastSpin.Int64)
		meta.LastSpinTime = &t
	}
	meta.UpdatedAt = fromMillis(updatedAt)
	return &meta, nil
}

// CreateSpinMeta inserts a zero record for the user if none exists
func (r *Repository) CreateSpinMeta(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidRecord
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO spin_meta (user_id, spins_count, last_winner_name, last_spin_time, updated_at)
		VALUES (?, 0, '', NULL, ?)
	`, userID, toMillis(time.Now()))
	return err
}

// IncrementSpinMeta bumps the spin counter and records the latest winner
func (r *Repository) IncrementSpinMeta(ctx context.Context, userID, winnerName string, spunAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE spin_meta
		SET spins_count = spins_count + 1, last_winner_name = ?, last_spin_time = ?, updated_at = ?
		WHERE user_id = ?
	`, winnerName, toMillis(spunAt), toMillis(time.Now()), userID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSpinMeta creates or overwrites the user's record with meta
func (r *Repository) SetSpinMeta(ctx context.Context, meta models.SpinMeta) error {
	if meta.UserID == "" {
		return ErrInvalidRecord
	}
	var lastSpin sql.NullInt64
	if meta.LastSpinTime != nil {
		lastSpin = sql.NullInt64{Int64: toMillis(*meta.LastSpinTime), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spin_meta (user_id, spins_count, last_winner_name, last_spin_time, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			spins_count = excluded.spins_count,
			last_winner_name = excluded.last_winner_name,
			last_spin_time = excluded.last_spin_time,
			updated_at = excluded.updated_at
	`, meta.UserID, meta.SpinsCount, meta.LastWinnerName, lastSpin, toMillis(time.Now()))
	return err
}

// ==================== History Methods ====================

// AppendHistory stores a completed spin. An empty ID is filled with a new nanoid.
func (r *Repository) AppendHistory(ctx context.Context, rec *models.SpinHistoryRecord) error {
	if rec.UserID == "" {
		return ErrInvalidRecord
	}
	if rec.ID == "" {
		id, err := r.newID()
		if err != nil {
			return err
		}
		rec.ID = id
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO spin_history (id, user_id, segment_id, name, description, color, value, spin_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, rec.SegmentID, rec.Name, rec.Description, rec.Color, rec.Value, rec.SpinNumber, toMillis(rec.CreatedAt))
	return err
}

// ListHistory returns a user's spins, newest first. A limit <= 0 returns all.
func (r *Repository) ListHistory(ctx context.Context, userID string, limit int) ([]models.SpinHistoryRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, segment_id, name, description, color, value, spin_number, created_at
		FROM spin_history
		WHERE user_id = ?
		ORDER BY created_at DESC, spin_number DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.SpinHistoryRecord{}
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// GetHistoryRecord returns one of a user's spins by id
func (r *Repository) GetHistoryRecord(ctx context.Context, userID, id string) (*models.SpinHistoryRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, segment_id, name, description, color, value, spin_number, created_at
		FROM spin_history
		WHERE user_id = ? AND id = ?
	`, userID, id)
	rec, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return rec, err
}

// CountHistory returns how many spins a user has on record
func (r *Repository) CountHistory(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spin_history WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanHistory(s scanner) (*models.SpinHistoryRecord, error) {
	var (
		rec         models.SpinHistoryRecord
		description sql.NullString
		color       sql.NullString
		value       sql.NullString
		createdAt   int64
	)
	if err := s.Scan(&rec.ID, &rec.UserID, &rec.SegmentID, &rec.Name, &description, &color, &value, &rec.SpinNumber, &createdAt); err != nil {
		return nil, err
	}
	rec.Description = description.String
	rec.Color = color.String
	rec.Value = value.String
	rec.CreatedAt = fromMillis(createdAt)
	return &rec, nil
}

// ==================== Settings Methods ====================

// GetSetting retrieves a setting value
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetSetting updates a setting value
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	return err
}
