package progression

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/skillforge/internal/curriculum"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed plan store. The schema is
// created by database.Migrate.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) CreatePlan(ctx context.Context, plan Plan) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if plan.Owner == "" {
		return "", fmt.Errorf("owner is required")
	}

	modules, err := json.Marshal(plan.Modules)
	if err != nil {
		return "", fmt.Errorf("marshal modules: %w", err)
	}
	createdAt := plan.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var id string
	err = s.pool.QueryRow(ctx,
		`INSERT INTO plans (owner, topic, difficulty, modules, completed_modules, created_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5::int[], $6)
		 RETURNING id::text`,
		plan.Owner,
		plan.Topic,
		string(plan.Difficulty),
		string(modules),
		toInt32s(mergeCompleted(nil, plan.Completed)),
		createdAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create plan: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) GetPlan(ctx context.Context, id string) (*Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if !validPlanID(id) {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id::text, owner, topic, difficulty, modules, completed_modules, credential, created_at
		 FROM plans
		 WHERE id = $1::uuid`,
		id,
	)
	plan, err := scanPlan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return plan, nil
}

func (s *PostgresStore) UpdateCompletion(ctx context.Context, id string, completed []int) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if !validPlanID(id) {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}

	// Union with the stored array in one statement so concurrent writers
	// cannot drop each other's numbers.
	var stored []int32
	err := s.pool.QueryRow(ctx,
		`UPDATE plans
		 SET completed_modules = ARRAY(
		   SELECT DISTINCT n FROM unnest(completed_modules || $2::int[]) AS n ORDER BY n
		 )
		 WHERE id = $1::uuid
		 RETURNING completed_modules`,
		id,
		toInt32s(completed),
	).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("update completion: %w", err)
	}
	return fromInt32s(stored), nil
}

func (s *PostgresStore) UpdateCredential(ctx context.Context, id string, cred Credential) (Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if !validPlanID(id) {
		return Credential{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return Credential{}, fmt.Errorf("marshal credential: %w", err)
	}

	if _, err := s.pool.Exec(ctx,
		`UPDATE plans
		 SET credential = $2::jsonb
		 WHERE id = $1::uuid AND credential IS NULL`,
		id,
		string(data),
	); err != nil {
		return Credential{}, fmt.Errorf("update credential: %w", err)
	}

	var stored []byte
	err = s.pool.QueryRow(ctx,
		`SELECT credential FROM plans WHERE id = $1::uuid`,
		id,
	).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	if err != nil {
		return Credential{}, fmt.Errorf("read credential: %w", err)
	}

	var out Credential
	if err := json.Unmarshal(stored, &out); err != nil {
		return Credential{}, fmt.Errorf("unmarshal credential: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) LoadPlans(ctx context.Context, owner string) ([]Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT id::text, owner, topic, difficulty, modules, completed_modules, credential, created_at
		 FROM plans
		 WHERE owner = $1
		 ORDER BY created_at ASC, id ASC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	plans := []Plan{}
	for rows.Next() {
		plan, err := scanPlan(rows)
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

func scanPlan(row pgx.Row) (*Plan, error) {
	var (
		plan       Plan
		difficulty string
		modules    []byte
		completed  []int32
		credential []byte
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
	if err := json.Unmarshal(modules, &plan.Modules); err != nil {
		return nil, fmt.Errorf("unmarshal modules: %w", err)
	}
	plan.Completed = mergeCompleted(nil, fromInt32s(completed))
	if len(credential) > 0 {
		var c Credential
		if err := json.Unmarshal(credential, &c); err != nil {
			return nil, fmt.Errorf("unmarshal credential: %w", err)
		}
		plan.Credential = &c
	}
	return &plan, nil
}

// validPlanID reports whether id can name a row; anything else is simply absent.
func validPlanID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func toInt32s(v []int) []int32 {
	out := make([]int32, len(v))
	for i, n := range v {
		out[i] = int32(n)
	}
	return out
}

func fromInt32s(v []int32) []int {
	out := make([]int, len(v))
	for i, n := range v {
		out[i] = int(n)
	}
	return out
}
