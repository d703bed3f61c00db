package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/nodues/internal/notify"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/valyala/fasthttp"
)

const keepAliveInterval = 15 * time.Second

// EventsHandler streams committed transitions to dashboards
type EventsHandler struct {
	Hub *notify.Hub
}

type eventFilter struct {
	applicationID string
	department    string
}

func (f eventFilter) match(e notify.Event) bool {
	if f.applicationID != "" && e.ApplicationID != f.applicationID {
		return false
	}
	if f.department == "" {
		return true
	}
	for _, d := range e.Departments {
		if d == f.department {
			return true
		}
	}
	return false
}

// Stream handles GET /api/v1/events
// @Summary Server-sent stream of workflow events
// @Description Events are refresh hints; re-read state after receiving one
// @Tags Events
// @Produce text/event-stream
// @Param application_id query string false "Only events of this application"
// @Param department query string false "Only events touching this department"
// @Success 200 {object} notify.Event
// @Router /events [get]
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	filter := eventFilter{
		applicationID: query(c, "application_id"),
		department:    registry.NormalizeName(query(c, "department")),
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	events, cancel := h.Hub.Subscribe()
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		_ = writeEvents(w, events, ticker.C, filter)
	}))
	return nil
}

// writeEvents copies matching events to w until the subscription ends or the
// client goes away.
func writeEvents(w *bufio.Writer, events <-chan notify.Event, keepAlive <-chan time.Time, filter eventFilter) error {
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if !filter.match(e) {
				continue
			}
			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data); err != nil {
				return err
			}
		case <-keepAlive:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}
