package http

import (
	"bufio"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/jhoicas/produccion-api/internal/infrastructure/sse"
)

// EventsHandler canal de notificaciones en vivo (text/event-stream).
type EventsHandler struct {
	hub *sse.Hub
}

// NewEventsHandler construye el handler.
func NewEventsHandler(hub *sse.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream godoc
// @Summary      Notificaciones en vivo
// @Description  Stream SSE por empleado: connected, heartbeat, role-changed, force-logout-warning, force-logout.
// @Description  El token puede enviarse en Authorization o en ?token=.
// @Tags         events
// @Produce      text/event-stream
// @Param        token  query  string  false  "Token de sesión"
// @Success      200
// @Failure      401   {object}  dto.ErrorResponse
// @Router       /api/events [get]
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	employeeID := GetEmployeeID(c)
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		conn := h.hub.Register(employeeID, w)
		defer h.hub.Unregister(conn)
		h.hub.Notify(employeeID, sse.EventConnected, map[string]any{
			"employee_id": employeeID,
			"ts":          time.Now().UTC(),
		})
		<-conn.Done()
	}))
	return nil
}
