package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/p-n-ai/skillforge/internal/curriculum"
	"github.com/p-n-ai/skillforge/internal/progression"
)

// questionView hides the answer key until the session is submitted.
type questionView struct {
	ID      string   `json:"id,omitempty"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

type sessionView struct {
	ID         string              `json:"id"`
	PlanID     string              `json:"plan_id"`
	Kind       curriculum.Kind     `json:"kind"`
	Module     int                 `json:"module,omitempty"`
	Questions  []questionView      `json:"questions"`
	Answers    map[int]int         `json:"answers"`
	Unanswered []int               `json:"unanswered"`
	StartedAt  time.Time           `json:"started_at"`
	Submitted  bool                `json:"submitted"`
	Result     *progression.Result `json:"result,omitempty"`
}

func newSessionView(s *progression.Session) sessionView {
	v := sessionView{
		ID:         s.ID,
		PlanID:     s.PlanID,
		Kind:       s.Kind,
		Module:     s.Module,
		Questions:  make([]questionView, len(s.Questions)),
		Answers:    s.Answers,
		Unanswered: s.Unanswered(),
		StartedAt:  s.StartedAt,
		Submitted:  s.Submitted,
		Result:     s.Result,
	}
	for i, q := range s.Questions {
		v.Questions[i] = questionView{ID: q.ID, Prompt: q.Prompt, Options: q.Options}
	}
	if v.Answers == nil {
		v.Answers = map[int]int{}
	}
	if v.Unanswered == nil {
		v.Unanswered = []int{}
	}
	return v
}

type startAssessmentRequest struct {
	Kind   curriculum.Kind `json:"kind"`
	Module int             `json:"module"`
}

func (s *Server) handleStartAssessment(w http.ResponseWriter, r *http.Request) {
	var req startAssessmentRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Kind == "" {
		req.Kind = curriculum.KindWeekly
	}

	plan, err := s.engine.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	session, err := s.engine.StartAssessment(r.Context(), plan, req.Kind, req.Module)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.sessions.Save(r.Context(), session); err != nil {
		writeError(w, r, fmt.Errorf("%w: save session: %w", progression.ErrPersistence, err))
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(session))
}

func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r.Context(), r.PathValue("sid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

type answerRequest struct {
	Option *int `json:"option"`
}

func (s *Server) handleRecordAnswer(w http.ResponseWriter, r *http.Request) {
	q, err := strconv.Atoi(r.PathValue("q"))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: question index %q", progression.ErrInvalidAnswer, r.PathValue("q")))
		return
	}
	var req answerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Option == nil {
		writeError(w, r, fmt.Errorf("%w: option is required", progression.ErrInvalidAnswer))
		return
	}

	session, err := s.sessions.Get(r.Context(), r.PathValue("sid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.engine.RecordAnswer(session, q, *req.Option); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.sessions.Save(r.Context(), session); err != nil {
		writeError(w, r, fmt.Errorf("%w: save session: %w", progression.ErrPersistence, err))
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(session))
}

type submitRequest struct {
	HolderName string `json:"holder_name"`
}

type submitResponse struct {
	Result progression.Result `json:"result"`
	Plan   planView           `json:"plan"`
}

// handleSubmitAssessment scores a session and, on a pass, completes the
// module or issues the credential. The session is kept until the plan write
// is durable, so a client whose write failed can resubmit the same session.
// With "Prefer: respond-async" the pending plan is returned at once and the
// outcome arrives on the plan's event stream.
func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	holder := strings.TrimSpace(req.HolderName)

	session, err := s.sessions.Get(r.Context(), r.PathValue("sid"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if session.Kind == curriculum.KindFinal && holder == "" {
		writeError(w, r, fmt.Errorf("%w: holder_name is required for the final assessment", progression.ErrInvalidInput))
		return
	}

	var res progression.Result
	if session.Submitted && session.Result != nil {
		res = *session.Result
		slog.Info("resuming submitted assessment", "session_id", session.ID, "plan_id", session.PlanID)
	} else {
		res, err = s.engine.SubmitAssessment(session)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.sessions.Save(r.Context(), session); err != nil {
			slog.Warn("failed to save submitted session", "session_id", session.ID, "error", err)
		}
	}

	plan, err := s.engine.GetPlan(r.Context(), session.PlanID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if !res.Passed {
		s.dropSession(r.Context(), session.ID)
		writeJSON(w, http.StatusOK, submitResponse{Result: res, Plan: newPlanView(plan)})
		return
	}

	var (
		pending progression.Plan
		results <-chan progression.SyncResult
	)
	if session.Kind == curriculum.KindFinal {
		pending, results, err = s.engine.IssueCredentialAsync(r.Context(), plan, holder)
	} else {
		pending, results, err = s.engine.CompleteModuleAsync(r.Context(), plan, session.Module)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if preferAsync(r) {
		go s.awaitSync(context.WithoutCancel(r.Context()), session.ID, results)
		writeJSON(w, http.StatusAccepted, submitResponse{Result: res, Plan: newPlanView(pending)})
		return
	}

	select {
	case out := <-results:
		if out.Err != nil {
			writeError(w, r, out.Err)
			return
		}
		s.dropSession(r.Context(), session.ID)
		writeJSON(w, http.StatusOK, submitResponse{Result: res, Plan: newPlanView(out.Plan)})
	case <-r.Context().Done():
		go s.awaitSync(context.WithoutCancel(r.Context()), session.ID, results)
	}
}

// awaitSync removes the session once a background write is durable.
func (s *Server) awaitSync(ctx context.Context, sessionID string, results <-chan progression.SyncResult) {
	out, ok := <-results
	if !ok || out.Err != nil {
		return
	}
	s.dropSession(ctx, sessionID)
}

func (s *Server) dropSession(ctx context.Context, id string) {
	if err := s.sessions.Delete(ctx, id); err != nil {
		slog.Warn("failed to delete session", "session_id", id, "error", err)
	}
}

func preferAsync(r *http.Request) bool {
	for _, v := range r.Header.Values("Prefer") {
		for _, pref := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(pref), "respond-async") {
				return true
			}
		}
	}
	return false
}
