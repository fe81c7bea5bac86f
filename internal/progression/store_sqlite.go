package progression

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/p-n-ai/skillforge/internal/curriculum"
)

// SQLiteStore keeps plans in a local SQLite file. It is the fallback used
// when the remote database is unreachable.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) a SQLite database and its tables.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			topic TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			modules TEXT NOT NULL,
			completed_modules TEXT NOT NULL DEFAULT '[]',
			credential TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS plans_owner_idx ON plans (owner, created_at)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create sqlite tables: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreatePlan(ctx context.Context, plan Plan) (string, error) {
	if plan.Owner == "" {
		return "", fmt.Errorf("owner is required")
	}
	modules, err := json.Marshal(plan.Modules)
	if err != nil {
		return "", fmt.Errorf("marshal modules: %w", err)
	}
	completed, err := json.Marshal(mergeCompleted(nil, plan.Completed))
	if err != nil {
		return "", fmt.Errorf("marshal completion: %w", err)
	}
	createdAt := plan.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plans (id, owner, topic, difficulty, modules, completed_modules, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, plan.Owner, plan.Topic, string(plan.Difficulty), string(modules), string(completed), createdAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("create plan: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*Plan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner, topic, difficulty, modules, completed_modules, credential, created_at
		 FROM plans WHERE id = ?`,
		id,
	)
	plan, err := scanSQLitePlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return plan, nil
}

func (s *SQLiteStore) UpdateCompletion(ctx context.Context, id string, completed []int) ([]int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT completed_modules FROM plans WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read completion: %w", err)
	}

	var current []int
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return nil, fmt.Errorf("unmarshal completion: %w", err)
	}
	merged := mergeCompleted(current, completed)
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal completion: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE plans SET completed_modules = ? WHERE id = ?`, string(data), id); err != nil {
		return nil, fmt.Errorf("update completion: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit completion: %w", err)
	}
	return merged, nil
}

func (s *SQLiteStore) UpdateCredential(ctx context.Context, id string, cred Credential) (Credential, error) {
	data, err := json.Marshal(cred)
	if err != nil {
		return Credential{}, fmt.Errorf("marshal credential: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Credential{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE plans SET credential = ? WHERE id = ? AND credential IS NULL`,
		string(data), id,
	); err != nil {
		return Credential{}, fmt.Errorf("update credential: %w", err)
	}

	var stored sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT credential FROM plans WHERE id = ?`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	if err != nil {
		return Credential{}, fmt.Errorf("read credential: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Credential{}, fmt.Errorf("commit credential: %w", err)
	}

	var out Credential
	if err := json.Unmarshal([]byte(stored.String), &out); err != nil {
		return Credential{}, fmt.Errorf("unmarshal credential: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) LoadPlans(ctx context.Context, owner string) ([]Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, topic, difficulty, modules, completed_modules, credential, created_at
		 FROM plans WHERE owner = ?
		 ORDER BY created_at ASC, id ASC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	plans := []Plan{}
	for rows.Next() {
		plan, err := scanSQLitePlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, *plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePlan(row rowScanner) (*Plan, error) {
	var (
		plan       Plan
		difficulty string
		modules    string
		completed  string
		credential sql.NullString
	)
	if err := row.Scan(
		&plan.ID,
		&plan.Owner,
		&plan.Topic,
		&difficulty,
		&modules,
		&completed,
		&credential,
		&plan.CreatedAt,
	); err != nil {
		return nil, err
	}

	plan.Difficulty = curriculum.Difficulty(difficulty)
	if err := json.Unmarshal([]byte(modules), &plan.Modules); err != nil {
		return nil, fmt.Errorf("unmarshal modules: %w", err)
	}
	var nums []int
	if err := json.Unmarshal([]byte(completed), &nums); err != nil {
		return nil, fmt.Errorf("unmarshal completion: %w", err)
	}
	plan.Completed = mergeCompleted(nil, nums)
	if credential.Valid {
		var c Credential
		if err := json.Unmarshal([]byte(credential.String), &c); err != nil {
			return nil, fmt.Errorf("unmarshal credential: %w", err)
		}
		plan.Credential = &c
	}
	return &plan, nil
}
