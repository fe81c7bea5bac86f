package httpapi

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/p-n-ai/skillforge/internal/progression"
	"github.com/p-n-ai/skillforge/internal/report"
)

// planView is a plan plus its derived progress state.
type planView struct {
	progression.Plan
	State         progression.PlanState           `json:"state"`
	ModuleStates  map[int]progression.ModuleState `json:"module_states"`
	NextModule    *int                            `json:"next_module,omitempty"`
	FinalUnlocked bool                            `json:"final_unlocked"`
}

func newPlanView(p progression.Plan) planView {
	v := planView{
		Plan:          p,
		State:         progression.StateOfPlan(p),
		ModuleStates:  make(map[int]progression.ModuleState, len(p.Modules)),
		FinalUnlocked: progression.IsFinalUnlocked(p),
	}
	for _, m := range p.Modules {
		v.ModuleStates[m.Number] = progression.StateOf(p, m.Number)
	}
	if next, ok := progression.NextRequiredModule(p); ok {
		v.NextModule = &next
	}
	return v
}

type createPlanRequest struct {
	Owner      string `json:"owner"`
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req createPlanRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	plan, err := s.engine.CreatePlan(r.Context(), req.Owner, req.Topic, req.Difficulty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPlanView(plan))
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.engine.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPlanView(plan))
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.engine.LoadPlans(r.Context(), r.PathValue("owner"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		views = append(views, newPlanView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": views})
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	plans, err := s.engine.LoadPlans(r.Context(), owner)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Render fully before writing headers so a failure can still be a JSON error.
	var buf bytes.Buffer
	if err := report.WriteProgress(&buf, plans); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-progress.xlsx"`, safeFilename(owner)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to send report", "owner", owner, "error", err)
	}
}

func safeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

type verifyResponse struct {
	Valid      bool                    `json:"valid"`
	Credential *progression.Credential `json:"credential,omitempty"`
}

// handleVerifyCredential checks a credential by plan ID and fingerprint, as
// printed on the certificate.
func (s *Server) handleVerifyCredential(w http.ResponseWriter, r *http.Request) {
	planID := r.URL.Query().Get("plan_id")
	fingerprint := r.URL.Query().Get("fingerprint")
	if planID == "" || fingerprint == "" {
		writeError(w, r, fmt.Errorf("%w: plan_id and fingerprint are required", progression.ErrInvalidInput))
		return
	}

	plan, err := s.engine.GetPlan(r.Context(), planID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if plan.Credential == nil || !s.engine.VerifyCredential(*plan.Credential, fingerprint) {
		writeJSON(w, http.StatusOK, verifyResponse{Valid: false})
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{Valid: true, Credential: plan.Credential})
}
