package progression

import (
	"slices"
	"time"

	"github.com/p-n-ai/skillforge/internal/curriculum"
)

// SyncState says whether a plan snapshot is known to be durable.
type SyncState string

const (
	SyncSynced  SyncState = "synced"
	SyncPending SyncState = "pending"
	SyncFailed  SyncState = "failed"
)

// Plan is one learner's enrollment in one generated curriculum.
type Plan struct {
	ID         string                `json:"id"`
	Owner      string                `json:"owner"`
	Topic      string                `json:"topic"`
	Difficulty curriculum.Difficulty `json:"difficulty"`
	Modules    []curriculum.Module   `json:"modules"`
	Completed  []int                 `json:"completed_modules"` // sorted, no duplicates
	Credential *Credential           `json:"credential,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	Sync       SyncState             `json:"sync,omitempty"`
}

// Credential is the proof of course completion. It never changes once issued.
type Credential struct {
	ID              string                `json:"id"`
	HolderName      string                `json:"holder_name"`
	CourseName      string                `json:"course_name"`
	Difficulty      curriculum.Difficulty `json:"difficulty"`
	IssueDate       time.Time             `json:"issue_date"`
	IssuerSignature string                `json:"issuer_signature"`
	Fingerprint     string                `json:"fingerprint"`
}

// HasModule reports whether n is one of the plan's module numbers.
func (p Plan) HasModule(n int) bool {
	_, ok := p.Module(n)
	return ok
}

// Module returns the module numbered n.
func (p Plan) Module(n int) (curriculum.Module, bool) {
	for _, m := range p.Modules {
		if m.Number == n {
			return m, true
		}
	}
	return curriculum.Module{}, false
}

// IsCompleted reports whether module n has been passed.
func (p Plan) IsCompleted(n int) bool {
	return slices.Contains(p.Completed, n)
}

// ModuleNumbers returns every module number in ascending order.
func (p Plan) ModuleNumbers() []int {
	nums := make([]int, 0, len(p.Modules))
	for _, m := range p.Modules {
		nums = append(nums, m.Number)
	}
	slices.Sort(nums)
	return nums
}

// Clone returns a deep copy so callers can mutate snapshots independently.
func (p Plan) Clone() Plan {
	out := p
	out.Modules = make([]curriculum.Module, len(p.Modules))
	for i, m := range p.Modules {
		m.KeyConcepts = slices.Clone(m.KeyConcepts)
		out.Modules[i] = m
	}
	out.Completed = slices.Clone(p.Completed)
	if p.Completed == nil {
		out.Completed = []int{}
	}
	if p.Credential != nil {
		c := *p.Credential
		out.Credential = &c
	}
	return out
}

// withCompleted returns a copy with n added to the completion set.
func (p Plan) withCompleted(n int) Plan {
	out := p.Clone()
	out.Completed = mergeCompleted(out.Completed, []int{n})
	return out
}

// mergeCompleted returns the sorted union of two completion sets.
func mergeCompleted(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.Sort(out)
	return slices.Compact(out)
}
