// VK Callback API webhook.
//
// VK expects the literal body "ok" for every accepted event and redelivers
// anything else, so only a full inbox (503) and a bad secret (403) answer
// otherwise.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/payroll-approval-bot/internal/content"
	"github.com/tbourn/payroll-approval-bot/internal/domain"
	"github.com/tbourn/payroll-approval-bot/internal/http/middleware"
	"github.com/tbourn/payroll-approval-bot/internal/notify"
	"github.com/tbourn/payroll-approval-bot/internal/services"
)

// VK callback event types.
const (
	EventConfirmation = "confirmation"
	EventMessageNew   = "message_new"
	EventMessageEvent = "message_event"
)

// CallbackRequest is the VK Callback API envelope.
type CallbackRequest struct {
	Type    string          `json:"type" example:"message_event"`
	EventID string          `json:"event_id" example:"4d1f9a0c3e5b2c7a"`
	GroupID int64           `json:"group_id" example:"123456"`
	Secret  string          `json:"secret,omitempty" swaggerignore:"true"`
	Object  json.RawMessage `json:"object" swaggertype:"object"`
}

type messageNew struct {
	Message struct {
		FromID  int64           `json:"from_id"`
		PeerID  int64           `json:"peer_id"`
		Text    string          `json:"text"`
		Payload json.RawMessage `json:"payload"`
	} `json:"message"`
}

type messageEvent struct {
	UserID  int64           `json:"user_id"`
	PeerID  int64           `json:"peer_id"`
	EventID string          `json:"event_id"`
	Payload json.RawMessage `json:"payload"`
}

// rawPayload normalizes a button payload: message_new carries it as a JSON
// string, message_event as an object.
func rawPayload(p json.RawMessage) string {
	p = bytes.TrimSpace(p)
	if len(p) == 0 || bytes.Equal(p, []byte("null")) {
		return ""
	}
	if p[0] == '"' {
		var s string
		if err := json.Unmarshal(p, &s); err == nil {
			return s
		}
		return ""
	}
	return string(p)
}

// inbound decodes the object of a message event. accepted is false for
// events that are not from a recipient.
func inbound(req CallbackRequest) (ev domain.Inbound, answer *notify.EventAnswer, accepted bool, err error) {
	switch req.Type {
	case EventMessageNew:
		var obj messageNew
		if err := json.Unmarshal(req.Object, &obj); err != nil {
			return ev, nil, false, err
		}
		m := obj.Message
		// Community and group-chat messages are not recipient actions.
		if m.FromID <= 0 || (m.PeerID != 0 && m.PeerID != m.FromID) {
			return ev, nil, false, nil
		}
		return domain.Inbound{
			EventID:     req.EventID,
			RecipientID: m.FromID,
			Action:      domain.DecodeAction(rawPayload(m.Payload), m.Text),
		}, nil, true, nil

	case EventMessageEvent:
		var obj messageEvent
		if err := json.Unmarshal(req.Object, &obj); err != nil {
			return ev, nil, false, err
		}
		if obj.UserID <= 0 {
			return ev, nil, false, nil
		}
		ev = domain.Inbound{
			EventID:     req.EventID,
			RecipientID: obj.UserID,
			Action:      domain.DecodeAction(rawPayload(obj.Payload), ""),
		}
		answer = &notify.EventAnswer{
			EventID: obj.EventID,
			UserID:  obj.UserID,
			PeerID:  obj.PeerID,
			Text:    content.TextActionAccepted,
		}
		return ev, answer, true, nil
	}
	return ev, nil, false, nil
}

// Handle godoc
// @ID          vkCallback
// @Summary     VK Callback API endpoint
// @Description Answers the confirmation handshake, deduplicates message events by event_id and queues them for the approval dialogue.
// @Tags        Webhook
// @Accept      json
// @Produce     plain
// @Param       body  body      handlers.CallbackRequest  true  "VK callback"
// @Success     200   {string}  string                    "ok, or the confirmation string"
// @Failure     400   {object}  handlers.ErrorResponse    "Malformed callback"
// @Failure     403   {object}  handlers.ErrorResponse    "Secret mismatch"
// @Failure     503   {object}  handlers.ErrorResponse    "Event loop saturated; VK will redeliver"
// @Router      /vk/callback [post]
func (h *Callback) Handle(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid callback body")
		return
	}
	lg := middleware.LoggerFrom(c).With().Str("vk_type", req.Type).Str("event_id", req.EventID).Logger()

	if h.cfg.GroupID != 0 && req.GroupID != h.cfg.GroupID {
		lg.Warn().Int64("group_id", req.GroupID).Msg("callback for another community")
		c.String(http.StatusOK, "ok")
		return
	}
	if req.Type == EventConfirmation {
		c.String(http.StatusOK, h.cfg.Confirmation)
		return
	}
	if h.cfg.Secret != "" && req.Secret != h.cfg.Secret {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "secret mismatch")
		return
	}

	ev, answer, accepted, err := inbound(req)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid callback object")
		return
	}
	if !accepted {
		c.String(http.StatusOK, "ok")
		return
	}

	ctx := c.Request.Context()
	fresh, err := h.events.RememberEvent(ctx, ev.EventID, ev.RecipientID, req.Type, h.cfg.DedupTTL)
	if err != nil {
		// Delivery is at-least-once; a dedup outage must not drop events.
		lg.Error().Err(err).Msg("event dedup failed")
		fresh = true
	}
	if !fresh {
		lg.Debug().Int64("recipient_id", ev.RecipientID).Msg("duplicate callback dropped")
		c.String(http.StatusOK, "ok")
		return
	}

	if err := h.queue.Enqueue(ev); err != nil {
		if ferr := h.events.ForgetEvent(ctx, ev.EventID); ferr != nil {
			lg.Error().Err(ferr).Msg("forget event failed; redelivery will be dropped")
		}
		if errors.Is(err, services.ErrInboxFull) {
			fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "event loop is saturated")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	if answer != nil && h.acker != nil {
		if err := h.acker.Answer(ctx, *answer); err != nil {
			lg.Warn().Err(err).Int64("recipient_id", ev.RecipientID).Msg("event answer failed")
		}
	}
	c.String(http.StatusOK, "ok")
}
