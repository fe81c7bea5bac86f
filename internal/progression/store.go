package progression

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Store durably records plans. Implementations apply field-level updates so
// that a completion write never drops a concurrently issued credential and
// vice versa.
type Store interface {
	// CreatePlan stores a new plan and returns its assigned ID.
	CreatePlan(ctx context.Context, plan Plan) (string, error)
	GetPlan(ctx context.Context, id string) (*Plan, error)
	// UpdateCompletion merges completed into the stored set and returns the
	// resulting set. Stored numbers are never removed.
	UpdateCompletion(ctx context.Context, id string, completed []int) ([]int, error)
	// UpdateCredential sets the credential if none is stored yet and returns
	// whichever credential is stored afterwards.
	UpdateCredential(ctx context.Context, id string, cred Credential) (Credential, error)
	// LoadPlans returns every plan owned by a learner, oldest first.
	LoadPlans(ctx context.Context, owner string) ([]Plan, error)
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	plans map[string]*Plan
	order []string
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory plan store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans: make(map[string]*Plan),
	}
}

func (s *MemoryStore) CreatePlan(_ context.Context, plan Plan) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := plan.Clone()
	stored.ID = uuid.NewString()
	stored.Completed = mergeCompleted(nil, stored.Completed)
	stored.Sync = ""
	s.plans[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	return stored.ID, nil
}

func (s *MemoryStore) GetPlan(_ context.Context, id string) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	out := plan.Clone()
	return &out, nil
}

func (s *MemoryStore) UpdateCompletion(_ context.Context, id string, completed []int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	plan.Completed = mergeCompleted(plan.Completed, completed)
	return slices.Clone(plan.Completed), nil
}

func (s *MemoryStore) UpdateCredential(_ context.Context, id string, cred Credential) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[id]
	if !ok {
		return Credential{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	if plan.Credential == nil {
		c := cred
		plan.Credential = &c
	}
	return *plan.Credential, nil
}

func (s *MemoryStore) LoadPlans(_ context.Context, owner string) ([]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plans := []Plan{}
	for _, id := range s.order {
		if p := s.plans[id]; p.Owner == owner {
			plans = append(plans, p.Clone())
		}
	}
	slices.SortStableFunc(plans, func(a, b Plan) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return plans, nil
}
