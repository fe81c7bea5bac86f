// Package progression implements the learning progression engine: plan
// creation, sequential module unlocking, assessment scoring, module
// completion, and credential issuance over an injected content generator
// and plan store.
package progression

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-n-ai/skillforge/internal/curriculum"
)

const defaultSyncTimeout = 10 * time.Second

// EngineConfig holds dependencies for the progression engine.
type EngineConfig struct {
	Generator     curriculum.Generator
	Store         Store
	Events        EventLogger
	Notifier      *Notifier
	Issuer        string           // printed on credentials (default "SkillForge Academy")
	CredentialKey []byte           // blake2b key for credential fingerprints
	Now           func() time.Time // clock (default time.Now)
	SyncTimeout   time.Duration    // deadline for background writes (default 10s)
}

// Engine is the learning progression processor. Plans are values: every
// operation takes a snapshot and returns a new one.
type Engine struct {
	generator     curriculum.Generator
	store         Store
	events        EventLogger
	notifier      *Notifier
	issuer        string
	credentialKey []byte
	now           func() time.Time
	syncTimeout   time.Duration
}

// SyncResult reports the outcome of a background write started by one of
// the Async operations. Plan is the durable plan on success and the
// unchanged input plan on failure.
type SyncResult struct {
	Plan Plan
	Err  error
}

// NewEngine creates a new progression engine.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = NopEventLogger{}
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	syncTimeout := cfg.SyncTimeout
	if syncTimeout <= 0 {
		syncTimeout = defaultSyncTimeout
	}
	return &Engine{
		generator:     cfg.Generator,
		store:         store,
		events:        events,
		notifier:      cfg.Notifier,
		issuer:        issuer,
		credentialKey: cfg.CredentialKey,
		now:           now,
		syncTimeout:   syncTimeout,
	}
}

// CreatePlan generates a curriculum for the topic and stores it as a new plan
// with nothing completed. Nothing is stored when generation fails.
func (e *Engine) CreatePlan(ctx context.Context, owner, topic, difficulty string) (Plan, error) {
	owner = strings.TrimSpace(owner)
	topic = strings.Join(strings.Fields(topic), " ")
	if owner == "" {
		return Plan{}, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if topic == "" {
		return Plan{}, fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}
	level, err := curriculum.ParseDifficulty(difficulty)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if e.generator == nil {
		return Plan{}, fmt.Errorf("%w: no generator configured", ErrGeneration)
	}

	slog.Info("creating plan", "owner", owner, "topic", topic, "difficulty", level)

	modules, err := e.generator.GenerateCurriculum(ctx, curriculum.CurriculumRequest{
		Learner:    owner,
		Topic:      topic,
		Difficulty: level,
	})
	if err != nil {
		return Plan{}, generationErr(err)
	}
	modules, err = checkModules(modules)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Owner:      owner,
		Topic:      topic,
		Difficulty: level,
		Modules:    modules,
		Completed:  []int{},
		CreatedAt:  e.now().UTC(),
	}
	id, err := e.store.CreatePlan(ctx, plan)
	if err != nil {
		return Plan{}, persistenceErr(err)
	}
	plan.ID = id
	plan.Sync = SyncSynced

	e.logEvent(Event{
		PlanID:    plan.ID,
		UserID:    owner,
		EventType: EventPlanCreated,
		Data: map[string]any{
			"topic":      topic,
			"difficulty": string(level),
			"modules":    len(modules),
		},
	})
	return plan, nil
}

// GetPlan loads a stored plan.
func (e *Engine) GetPlan(ctx context.Context, id string) (Plan, error) {
	plan, err := e.store.GetPlan(ctx, id)
	if err != nil {
		return Plan{}, persistenceErr(err)
	}
	plan.Sync = SyncSynced
	return *plan, nil
}

// LoadPlans returns every plan owned by a learner, oldest first. A store
// failure is returned as an error, never as an empty list.
func (e *Engine) LoadPlans(ctx context.Context, owner string) ([]Plan, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	plans, err := e.store.LoadPlans(ctx, owner)
	if err != nil {
		return nil, persistenceErr(err)
	}
	for i := range plans {
		plans[i].Sync = SyncSynced
	}
	return plans, nil
}

// StartAssessment opens a weekly quiz for module n or the final exam.
// module is ignored for the final exam.
func (e *Engine) StartAssessment(ctx context.Context, plan Plan, kind curriculum.Kind, module int) (*Session, error) {
	scope := curriculum.Scope{
		Kind:       kind,
		Learner:    plan.Owner,
		Topic:      plan.Topic,
		Difficulty: plan.Difficulty,
		Count:      curriculum.DefaultCount(kind),
	}

	switch kind {
	case curriculum.KindWeekly:
		m, ok := plan.Module(module)
		if !ok {
			return nil, fmt.Errorf("%w: module %d", ErrModuleNotFound, module)
		}
		if IsLocked(plan, module) {
			next, _ := NextRequiredModule(plan)
			return nil, fmt.Errorf("%w: module %d (complete module %d first)", ErrModuleLocked, module, next)
		}
		scope.Title = m.Title
		scope.Concepts = slices.Clone(m.KeyConcepts)
	case curriculum.KindFinal:
		if !IsFinalUnlocked(plan) {
			return nil, ErrFinalLocked
		}
		module = 0
		for _, num := range plan.ModuleNumbers() {
			m, _ := plan.Module(num)
			scope.ModuleTitles = append(scope.ModuleTitles, m.Title)
		}
	default:
		return nil, fmt.Errorf("%w: unknown assessment kind %q", ErrInvalidInput, kind)
	}

	if e.generator == nil {
		return nil, fmt.Errorf("%w: no generator configured", ErrGeneration)
	}
	questions, err := e.generator.GenerateAssessment(ctx, scope)
	if err != nil {
		return nil, generationErr(err)
	}
	if err := checkQuestions(questions); err != nil {
		return nil, err
	}

	session := &Session{
		ID:        uuid.NewString(),
		PlanID:    plan.ID,
		Owner:     plan.Owner,
		Kind:      kind,
		Module:    module,
		Questions: questions,
		Answers:   make(map[int]int, len(questions)),
		StartedAt: e.now().UTC(),
	}

	e.logEvent(Event{
		PlanID:    plan.ID,
		UserID:    plan.Owner,
		EventType: EventAssessmentStarted,
		Data: map[string]any{
			"session_id": session.ID,
			"kind":       string(kind),
			"module":     module,
			"questions":  len(questions),
		},
	})
	return session, nil
}

// RecordAnswer stores an answer in an open session.
func (e *Engine) RecordAnswer(s *Session, q, option int) error {
	return s.RecordAnswer(q, option)
}

// SubmitAssessment scores a session. The plan is not modified; a passing
// weekly result is acted on with CompleteModule and a passing final result
// with IssueCredential.
func (e *Engine) SubmitAssessment(s *Session) (Result, error) {
	res, err := s.Submit()
	if err != nil {
		return Result{}, err
	}

	slog.Info("assessment submitted",
		"plan_id", s.PlanID,
		"kind", s.Kind,
		"module", s.Module,
		"score", res.Score,
		"total", res.Total,
		"passed", res.Passed,
	)
	e.logEvent(Event{
		PlanID:    s.PlanID,
		UserID:    s.Owner,
		EventType: EventAssessmentSubmitted,
		Data: map[string]any{
			"session_id": s.ID,
			"kind":       string(s.Kind),
			"module":     s.Module,
			"score":      res.Score,
			"total":      res.Total,
			"passed":     res.Passed,
		},
	})
	return res, nil
}

// CompleteModule records module n as passed. Completing an already completed
// module is a no-op. On failure the input plan is returned unchanged.
func (e *Engine) CompleteModule(ctx context.Context, plan Plan, n int) (Plan, error) {
	if !plan.HasModule(n) {
		return plan, fmt.Errorf("%w: module %d", ErrModuleNotFound, n)
	}
	if plan.IsCompleted(n) {
		return plan, nil
	}

	want := plan.withCompleted(n)
	stored, err := e.store.UpdateCompletion(ctx, plan.ID, want.Completed)
	if err != nil {
		slog.Error("failed to store module completion", "plan_id", plan.ID, "module", n, "error", err)
		return plan, persistenceErr(err)
	}

	out := plan.Clone()
	out.Completed = onlyModules(plan, mergeCompleted(want.Completed, stored))
	out.Sync = SyncSynced

	e.logEvent(Event{
		PlanID:    plan.ID,
		UserID:    plan.Owner,
		EventType: EventModuleCompleted,
		Data:      map[string]any{"module": n},
	})
	e.publish(EventModuleCompleted, out, nil)
	return out, nil
}

// IssueCredential mints the completion credential. A plan that already holds
// a credential is returned unchanged.
func (e *Engine) IssueCredential(ctx context.Context, plan Plan, holder string) (Plan, error) {
	if plan.Credential != nil {
		return plan, nil
	}
	cred, err := e.mintCredential(plan, holder)
	if err != nil {
		return plan, err
	}
	return e.storeCredential(ctx, plan, cred)
}

// CompleteModuleAsync returns a pending plan with module n completed and
// writes the completion in the background. The channel delivers exactly one
// result. The pending plan must not be treated as durable.
func (e *Engine) CompleteModuleAsync(ctx context.Context, plan Plan, n int) (Plan, <-chan SyncResult, error) {
	if !plan.HasModule(n) {
		return plan, nil, fmt.Errorf("%w: module %d", ErrModuleNotFound, n)
	}
	results := make(chan SyncResult, 1)
	if plan.IsCompleted(n) {
		results <- SyncResult{Plan: plan}
		close(results)
		return plan, results, nil
	}

	pending := plan.withCompleted(n)
	pending.Sync = SyncPending

	go func() {
		defer close(results)
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.syncTimeout)
		defer cancel()
		durable, err := e.CompleteModule(ctx, plan, n)
		results <- e.syncResult(durable, err)
	}()
	return pending, results, nil
}

// IssueCredentialAsync mints the credential immediately and stores it in the
// background. If another credential wins the race the result carries the
// stored one.
func (e *Engine) IssueCredentialAsync(ctx context.Context, plan Plan, holder string) (Plan, <-chan SyncResult, error) {
	results := make(chan SyncResult, 1)
	if plan.Credential != nil {
		results <- SyncResult{Plan: plan}
		close(results)
		return plan, results, nil
	}
	cred, err := e.mintCredential(plan, holder)
	if err != nil {
		return plan, nil, err
	}

	pending := plan.Clone()
	pending.Credential = &cred
	pending.Sync = SyncPending

	go func() {
		defer close(results)
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.syncTimeout)
		defer cancel()
		durable, err := e.storeCredential(ctx, plan, cred)
		results <- e.syncResult(durable, err)
	}()
	return pending, results, nil
}

// VerifyCredential checks a presented fingerprint with the engine's key.
func (e *Engine) VerifyCredential(c Credential, fingerprint string) bool {
	return VerifyCredential(c, fingerprint, e.credentialKey)
}

func (e *Engine) mintCredential(plan Plan, holder string) (Credential, error) {
	if !IsFinalUnlocked(plan) {
		return Credential{}, ErrFinalLocked
	}
	holder = strings.Join(strings.Fields(holder), " ")
	if holder == "" {
		return Credential{}, fmt.Errorf("%w: holder name is required", ErrInvalidInput)
	}
	cred := Credential{
		ID:              NewCredentialID(),
		HolderName:      holder,
		CourseName:      CourseName(plan.Topic),
		Difficulty:      plan.Difficulty,
		IssueDate:       issueDate(e.now()),
		IssuerSignature: e.issuer,
	}
	cred.Fingerprint = Fingerprint(cred, e.credentialKey)
	return cred, nil
}

func (e *Engine) storeCredential(ctx context.Context, plan Plan, cred Credential) (Plan, error) {
	stored, err := e.store.UpdateCredential(ctx, plan.ID, cred)
	if err != nil {
		slog.Error("failed to store credential", "plan_id", plan.ID, "error", err)
		return plan, persistenceErr(err)
	}

	out := plan.Clone()
	out.Credential = &stored
	out.Sync = SyncSynced

	if stored.ID == cred.ID {
		slog.Info("credential issued", "plan_id", plan.ID, "credential_id", stored.ID)
		e.logEvent(Event{
			PlanID:    plan.ID,
			UserID:    plan.Owner,
			EventType: EventCredentialIssued,
			Data:      map[string]any{"credential_id": stored.ID},
		})
	}
	e.publish(EventCredentialIssued, out, nil)
	return out, nil
}

func (e *Engine) syncResult(plan Plan, err error) SyncResult {
	if err == nil {
		return SyncResult{Plan: plan}
	}
	plan.Sync = SyncFailed
	e.logEvent(Event{
		PlanID:    plan.ID,
		UserID:    plan.Owner,
		EventType: EventSyncFailed,
		Data:      map[string]any{"error": err.Error()},
	})
	e.publish(EventSyncFailed, plan, err)
	return SyncResult{Plan: plan, Err: err}
}

func (e *Engine) publish(eventType string, plan Plan, err error) {
	if e.notifier == nil {
		return
	}
	u := Update{PlanID: plan.ID, Type: eventType, At: e.now().UTC()}
	snapshot := plan.Clone()
	u.Plan = &snapshot
	if err != nil {
		u.Error = err.Error()
	}
	e.notifier.Publish(u)
}

func (e *Engine) logEvent(event Event) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now().UTC()
	}
	if err := e.events.LogEvent(event); err != nil {
		slog.Warn("failed to log event", "type", event.EventType, "plan_id", event.PlanID, "error", err)
	}
}

// checkModules guards against generators that skip normalization.
func checkModules(modules []curriculum.Module) ([]curriculum.Module, error) {
	if len(modules) == 0 {
		return nil, fmt.Errorf("%w: curriculum has no modules", ErrGeneration)
	}
	for _, m := range modules {
		if m.Number < 0 || m.Number > curriculum.MaxWeek {
			return nil, fmt.Errorf("%w: module number %d out of range", ErrGeneration, m.Number)
		}
	}
	out := slices.Clone(modules)
	slices.SortFunc(out, func(a, b curriculum.Module) int { return cmp.Compare(a.Number, b.Number) })
	for i := 1; i < len(out); i++ {
		if out[i].Number == out[i-1].Number {
			return nil, fmt.Errorf("%w: duplicate module number %d", ErrGeneration, out[i].Number)
		}
	}
	return out, nil
}

func checkQuestions(questions []curriculum.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: empty question set", ErrGeneration)
	}
	for i, q := range questions {
		if len(q.Options) < 2 || q.Correct < 0 || q.Correct >= len(q.Options) {
			return fmt.Errorf("%w: question %d is malformed", ErrGeneration, i)
		}
	}
	return nil
}

// onlyModules drops completion numbers that do not name a module of the plan.
func onlyModules(plan Plan, completed []int) []int {
	return slices.DeleteFunc(completed, func(n int) bool { return !plan.HasModule(n) })
}

func generationErr(err error) error {
	if errors.Is(err, ErrGeneration) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrGeneration, err)
}

// persistenceErr marks store failures as retryable. Missing plans stay
// distinguishable so callers can answer "not found".
func persistenceErr(err error) error {
	if errors.Is(err, ErrPlanNotFound) || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
