package progression

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
)

// FallbackStore writes to a primary (remote) store and falls back to a local
// store when the primary fails. The engine only sees a single Store.
type FallbackStore struct {
	primary Store
	local   Store
}

// NewFallbackStore combines a primary store with a local fallback.
func NewFallbackStore(primary, local Store) *FallbackStore {
	return &FallbackStore{primary: primary, local: local}
}

func (s *FallbackStore) CreatePlan(ctx context.Context, plan Plan) (string, error) {
	id, err := s.primary.CreatePlan(ctx, plan)
	if err == nil {
		return id, nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	slog.Warn("primary store unavailable, creating plan locally", "owner", plan.Owner, "error", err)
	id, lerr := s.local.CreatePlan(ctx, plan)
	if lerr != nil {
		return "", errors.Join(err, lerr)
	}
	return id, nil
}

func (s *FallbackStore) GetPlan(ctx context.Context, id string) (*Plan, error) {
	plan, err := s.primary.GetPlan(ctx, id)
	if err == nil {
		return plan, nil
	}
	plan, lerr := s.local.GetPlan(ctx, id)
	if lerr != nil {
		return nil, joinNotFound(err, lerr)
	}
	return plan, nil
}

func (s *FallbackStore) UpdateCompletion(ctx context.Context, id string, completed []int) ([]int, error) {
	got, err := s.primary.UpdateCompletion(ctx, id, completed)
	if err == nil {
		return got, nil
	}
	got, lerr := s.local.UpdateCompletion(ctx, id, completed)
	if lerr != nil {
		return nil, joinNotFound(err, lerr)
	}
	if !errors.Is(err, ErrPlanNotFound) {
		slog.Warn("primary store unavailable, completion saved locally", "plan_id", id, "error", err)
	}
	return got, nil
}

func (s *FallbackStore) UpdateCredential(ctx context.Context, id string, cred Credential) (Credential, error) {
	got, err := s.primary.UpdateCredential(ctx, id, cred)
	if err == nil {
		return got, nil
	}
	got, lerr := s.local.UpdateCredential(ctx, id, cred)
	if lerr != nil {
		return Credential{}, joinNotFound(err, lerr)
	}
	if !errors.Is(err, ErrPlanNotFound) {
		slog.Warn("primary store unavailable, credential saved locally", "plan_id", id, "error", err)
	}
	return got, nil
}

// LoadPlans merges plans from both stores. A failing primary is tolerated
// only when the local store has plans to show; otherwise the error is
// returned rather than an empty list.
func (s *FallbackStore) LoadPlans(ctx context.Context, owner string) ([]Plan, error) {
	remote, err := s.primary.LoadPlans(ctx, owner)
	local, lerr := s.local.LoadPlans(ctx, owner)

	switch {
	case err != nil && lerr != nil:
		return nil, errors.Join(err, lerr)
	case err != nil:
		if len(local) == 0 {
			return nil, err
		}
		slog.Warn("primary store unavailable, listing local plans only", "owner", owner, "error", err)
		return local, nil
	case lerr != nil:
		slog.Warn("local store unavailable, listing remote plans only", "owner", owner, "error", lerr)
		return remote, nil
	}

	seen := make(map[string]bool, len(remote))
	merged := make([]Plan, 0, len(remote)+len(local))
	for _, p := range remote {
		seen[p.ID] = true
		merged = append(merged, p)
	}
	for _, p := range local {
		if !seen[p.ID] {
			merged = append(merged, p)
		}
	}
	slices.SortStableFunc(merged, func(a, b Plan) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return merged, nil
}

// joinNotFound reports ErrPlanNotFound alone when neither store knows the plan,
// so callers see a 404 rather than a persistence failure.
func joinNotFound(primaryErr, localErr error) error {
	if errors.Is(primaryErr, ErrPlanNotFound) && errors.Is(localErr, ErrPlanNotFound) {
		return primaryErr
	}
	if errors.Is(localErr, ErrPlanNotFound) {
		return primaryErr
	}
	return errors.Join(primaryErr, localErr)
}
