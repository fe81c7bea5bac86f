package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/skillforge/internal/progression"
)

const (
	eventWriteTimeout = 5 * time.Second
	eventPingInterval = 30 * time.Second
)

// handlePlanEvents streams plan updates over a websocket. The first message
// is the current plan so clients start from a known snapshot.
func (s *Server) handlePlanEvents(w http.ResponseWriter, r *http.Request) {
	plan, err := s.engine.GetPlan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Subscribe before the upgrade so no update published in between is lost.
	updates, unsubscribe := s.notifier.Subscribe(plan.ID)
	defer unsubscribe()

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		slog.Warn("websocket upgrade failed", "plan_id", plan.ID, "error", err)
		return
	}
	defer c.CloseNow()

	// Clients only listen; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := c.CloseRead(r.Context())

	slog.Debug("plan event stream opened", "plan_id", plan.ID)
	if err := writeUpdate(ctx, c, progression.Update{
		PlanID: plan.ID,
		Type:   "snapshot",
		Plan:   &plan,
		At:     time.Now().UTC(),
	}); err != nil {
		return
	}

	ping := time.NewTicker(eventPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("plan event stream closed", "plan_id", plan.ID)
			return
		case u, ok := <-updates:
			if !ok {
				c.Close(websocket.StatusGoingAway, "stream closed")
				return
			}
			if err := writeUpdate(ctx, c, u); err != nil {
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := c.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func writeUpdate(ctx context.Context, c *websocket.Conn, u progression.Update) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, c, u); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("failed to write plan update", "plan_id", u.PlanID, "type", u.Type, "error", err)
		}
		return err
	}
	return nil
}
