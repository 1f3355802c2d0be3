// README: WebSocket subscription endpoint for booking and provider topics.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"mechanico/internal/modules/booking"
	"mechanico/internal/notify"
	"mechanico/internal/types"
)

type EventsHandler struct {
	hub      *notify.Hub
	bookings *booking.Service
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewEventsHandler(hub *notify.Hub, bookings *booking.Service, log logrus.FieldLogger) *EventsHandler {
	return &EventsHandler{
		hub:      hub,
		bookings: bookings,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *EventsHandler) Subscribe(c *gin.Context) {
	topic := c.Query("topic")
	kind, id, ok := notify.ParseTopic(topic)
	if !ok {
		writeError(c, http.StatusBadRequest, "bad_request", "topic must be booking:<id> or provider:<id>")
		return
	}
	actor := callerActor(c)
	allowed, err := h.mayWatch(c.Request.Context(), actor, kind, id)
	if err != nil {
		writeInternal(c, err)
		return
	}
	if !allowed {
		writeError(c, http.StatusNotFound, "not_found", "topic not found")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	sub := h.hub.Subscribe(topic)
	h.log.WithFields(logrus.Fields{"topic": topic, "user_id": actor.ID}).Debug("subscriber attached")
	// Hub.Close ends the stream on shutdown; hijacked connections are not
	// tracked by http.Server.
	notify.Stream(c.Request.Context(), conn, h.hub, sub, h.log)
}

// mayWatch lets parties watch their bookings, providers watch their own topic
// and customers watch a provider they have an active booking with.
func (h *EventsHandler) mayWatch(ctx context.Context, actor booking.Actor, kind string, id types.ID) (bool, error) {
	switch kind {
	case "booking":
		_, err := h.bookings.Get(ctx, id, actor)
		if errors.Is(err, booking.ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	case "provider":
		if actor.Role == booking.RoleProvider {
			return actor.ID == id, nil
		}
		active, err := h.bookings.ActiveByProvider(ctx, id)
		if err != nil {
			return false, err
		}
		for _, b := range active {
			if b.CustomerID == actor.ID {
				return true, nil
			}
		}
	}
	return false, nil
}
