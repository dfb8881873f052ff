package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/matthewbaird/listingform/internal/event"
	"github.com/matthewbaird/listingform/internal/session"
	"github.com/matthewbaird/listingform/internal/wizard"
)

// ServeWS upgrades to WebSocket and runs the live editing loop for one
// wizard. The current state is pushed on connect.
// GET /v1/wizards/{id}/ws
func (h *WizardHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		h.Logger.Warn("websocket accept", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	h.send(ctx, conn, ServerMessage{Type: "state", Data: h.snapshotState(sess)})

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.Logger.Debug("websocket closed", "wizard", sess.ID(), "status", websocket.CloseStatus(err))
			}
			return
		}
		if h.Sessions.Get(sess.ID()) == nil {
			h.sendError(ctx, conn, msg.ID, "wizard_gone", "wizard is closed or expired")
			conn.Close(websocket.StatusNormalClosure, "wizard closed")
			return
		}

		switch msg.Type {
		case "update":
			h.wsUpdate(ctx, conn, sess, msg)
		case "touch":
			h.wsTouch(ctx, conn, sess, msg)
		case "next":
			h.wsMove(ctx, conn, sess, msg, (*wizard.Wizard).Next)
		case "back":
			h.wsMove(ctx, conn, sess, msg, (*wizard.Wizard).Back)
		case "fields":
			var view fieldsView
			_ = sess.Do(func(wz *wizard.Wizard) error {
				view = fieldsOf(wz)
				return nil
			})
			h.send(ctx, conn, ServerMessage{Type: "fields", RequestID: msg.ID, Data: view})
		case "state":
			h.send(ctx, conn, ServerMessage{Type: "state", RequestID: msg.ID, Data: h.snapshotState(sess)})
		case "ping":
			h.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
		default:
			h.sendError(ctx, conn, msg.ID, "unknown_type", fmt.Sprintf("unknown message type: %s", msg.Type))
		}
	}
}

func (h *WizardHandler) wsUpdate(ctx context.Context, conn *websocket.Conn, sess *session.Session, msg ClientMessage) {
	var partial map[string]any
	if err := json.Unmarshal(msg.Data, &partial); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid update data")
		return
	}
	var (
		data    UpdatedData
		changed *event.DomainEvent
	)
	err := sess.Do(func(wz *wizard.Wizard) error {
		evt, purged, err := applyUpdate(wz, partial)
		if err != nil {
			return err
		}
		changed = evt
		data = UpdatedData{Purged: nonNilSlice(purged), State: stateOf(wz)}
		return nil
	})
	if err != nil {
		h.sendWizardError(ctx, conn, msg.ID, err)
		return
	}
	if changed != nil {
		h.record(ctx, *changed)
	}
	h.send(ctx, conn, ServerMessage{Type: "updated", RequestID: msg.ID, Data: data})
}

func (h *WizardHandler) wsTouch(ctx context.Context, conn *websocket.Conn, sess *session.Session, msg ClientMessage) {
	var data TouchData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		h.sendError(ctx, conn, msg.ID, "invalid_data", "invalid touch data")
		return
	}
	var state wizardState
	_ = sess.Do(func(wz *wizard.Wizard) error {
		wz.Touch(data.Fields...)
		state = stateOf(wz)
		return nil
	})
	h.send(ctx, conn, ServerMessage{Type: "state", RequestID: msg.ID, Data: state})
}

func (h *WizardHandler) wsMove(ctx context.Context, conn *websocket.Conn, sess *session.Session, msg ClientMessage, move func(*wizard.Wizard) (wizard.Transition, error)) {
	var (
		view transitionView
		evt  *event.DomainEvent
	)
	err := sess.Do(func(wz *wizard.Wizard) error {
		tr, e, err := applyMove(wz, move)
		if err != nil {
			return err
		}
		view = transitionView{Transition: tr, State: stateOf(wz)}
		evt = e
		return nil
	})
	if err != nil {
		h.sendWizardError(ctx, conn, msg.ID, err)
		return
	}
	if evt != nil {
		h.record(ctx, *evt)
	}
	h.send(ctx, conn, ServerMessage{Type: "transition", RequestID: msg.ID, Data: view})
}

func (h *WizardHandler) snapshotState(sess *session.Session) wizardState {
	var state wizardState
	_ = sess.Do(func(wz *wizard.Wizard) error {
		state = stateOf(wz)
		return nil
	})
	return state
}

func (h *WizardHandler) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		h.Logger.Debug("websocket write", "err", err)
	}
}

func (h *WizardHandler) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	h.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data:      ErrorData{Code: code, Message: message},
	})
}

func (h *WizardHandler) sendWizardError(ctx context.Context, conn *websocket.Conn, requestID string, err error) {
	switch {
	case errors.Is(err, wizard.ErrSubmitting):
		h.sendError(ctx, conn, requestID, "submitting", err.Error())
	case errors.Is(err, wizard.ErrReservedField):
		h.sendError(ctx, conn, requestID, "reserved_field", err.Error())
	default:
		h.Logger.Error("websocket operation", "err", err)
		h.sendError(ctx, conn, requestID, "internal", "internal error")
	}
}
