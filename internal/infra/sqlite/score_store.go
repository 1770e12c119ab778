package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"trivia-quiz-service/internal/domain"
)

const defaultRecentLimit = 100

// ScoreStore keeps scores in a local SQLite file for single node deployments.
type ScoreStore struct {
	db *sql.DB
}

func NewScoreStore(path string) (*ScoreStore, error) {
	if strings.TrimSpace(path) == "" {
		path = "trivia.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &ScoreStore{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *ScoreStore) Close() error {
	return s.db.Close()
}

func (s *ScoreStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scores (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			score INTEGER NOT NULL,
			total INTEGER NOT NULL,
			category TEXT NOT NULL,
			difficulty TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scores_created_at ON scores(created_at);
	`)
	if err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

func (s *ScoreStore) SaveScore(ctx context.Context, record domain.ScoreRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (id, user_id, score, total, category, difficulty, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.UserID, record.Score, record.Total, record.Category, record.Difficulty,
		record.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert score: %w", err)
	}
	return nil
}

// RecentScores returns up to limit records, newest first.
func (s *ScoreStore) RecentScores(ctx context.Context, limit int) ([]domain.ScoreRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, score, total, category, difficulty, created_at
		 FROM scores ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer rows.Close()

	var records []domain.ScoreRecord
	for rows.Next() {
		var (
			r       domain.ScoreRecord
			created int64
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Score, &r.Total, &r.Category, &r.Difficulty, &created); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}
