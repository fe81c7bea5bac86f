package progression

// ModuleState is the derived progress state of a single module.
type ModuleState string

const (
	ModuleLocked    ModuleState = "locked"
	ModuleAvailable ModuleState = "available"
	ModulePassed    ModuleState = "passed"
)

// PlanState is the derived progress state of a plan.
type PlanState string

const (
	PlanInProgress     PlanState = "in_progress"
	PlanFinalAvailable PlanState = "final_available"
	PlanCertified      PlanState = "certified"
)

// NextRequiredModule returns the lowest module number not yet completed.
// ok is false when every module has been completed.
func NextRequiredModule(p Plan) (n int, ok bool) {
	for _, num := range p.ModuleNumbers() {
		if !p.IsCompleted(num) {
			return num, true
		}
	}
	return 0, false
}

// IsLocked reports whether module n cannot be attempted yet. The curriculum
// is strictly linear: everything after the next required module is locked,
// whatever the completion state of modules in between.
func IsLocked(p Plan, n int) bool {
	if p.IsCompleted(n) {
		return false
	}
	next, ok := NextRequiredModule(p)
	return ok && n > next
}

// IsFinalUnlocked reports whether every module has been completed.
func IsFinalUnlocked(p Plan) bool {
	if len(p.Modules) == 0 {
		return false
	}
	for _, m := range p.Modules {
		if !p.IsCompleted(m.Number) {
			return false
		}
	}
	return true
}

// StateOf returns the derived state of module n.
func StateOf(p Plan, n int) ModuleState {
	switch {
	case p.IsCompleted(n):
		return ModulePassed
	case IsLocked(p, n):
		return ModuleLocked
	default:
		return ModuleAvailable
	}
}

// StateOfPlan returns the derived state of the whole plan.
func StateOfPlan(p Plan) PlanState {
	switch {
	case p.Credential != nil:
		return PlanCertified
	case IsFinalUnlocked(p):
		return PlanFinalAvailable
	default:
		return PlanInProgress
	}
}
