// Package sse mantiene un canal de notificaciones en vivo por empleado (text/event-stream).
// La entrega es best-effort y a lo sumo una vez: sin persistencia ni reenvío.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jhoicas/produccion-api/pkg/logger"
	"github.com/jhoicas/produccion-api/pkg/metrics"
)

// Eventos propios del canal.
const (
	EventConnected = "connected"
	EventHeartbeat = "heartbeat"
)

// WriteEvent escribe un mensaje con el framing `event: <name>\ndata: <json>\n\n`.
func WriteEvent(w io.Writer, event string, data []byte) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// Conn conexión viva de un empleado.
type Conn struct {
	employeeID string
	mu         sync.Mutex
	w          *bufio.Writer
	done       chan struct{}
	once       sync.Once
}

// EmployeeID dueño de la conexión.
func (c *Conn) EmployeeID() string { return c.employeeID }

// Done se cierra cuando la conexión deja de estar registrada (reemplazo, error de escritura o baja).
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Conn) send(event string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return fmt.Errorf("sse: conexión cerrada")
	default:
	}
	if err := WriteEvent(c.w, event, data); err != nil {
		return err
	}
	return c.w.Flush()
}

// Hub registro proceso-local employeeID -> conexión. Una conexión por empleado.
type Hub struct {
	mu      sync.RWMutex
	conns   map[string]*Conn
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewHub construye el hub. log y m pueden ser nil.
func NewHub(log *logger.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		conns:   make(map[string]*Conn),
		log:     logger.OrNop(log).Component("sse"),
		metrics: m,
	}
}

// Register asocia w al empleado, reemplazando (y cerrando) cualquier conexión previa.
func (h *Hub) Register(employeeID string, w *bufio.Writer) *Conn {
	c := &Conn{employeeID: employeeID, w: w, done: make(chan struct{})}
	h.mu.Lock()
	prev := h.conns[employeeID]
	h.conns[employeeID] = c
	n := len(h.conns)
	h.mu.Unlock()

	if prev != nil {
		prev.close()
	}
	h.metrics.SetLiveClients(n)
	h.log.Debug().Str("employee_id", employeeID).Bool("replaced", prev != nil).Msg("cliente conectado")
	return c
}

// Unregister da de baja c si sigue siendo la conexión vigente del empleado.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	if cur, ok := h.conns[c.employeeID]; ok && cur == c {
		delete(h.conns, c.employeeID)
	}
	n := len(h.conns)
	h.mu.Unlock()
	c.close()
	h.metrics.SetLiveClients(n)
}

// Notify envía un evento al empleado si está conectado. Sin conexión se descarta; un fallo de
// escritura da de baja la conexión.
func (h *Hub) Notify(employeeID, event string, payload any) {
	h.mu.RLock()
	c := h.conns[employeeID]
	h.mu.RUnlock()
	if c == nil {
		h.metrics.ObserveNotification(event, "dropped")
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("payload no serializable")
		return
	}
	if err := c.send(event, data); err != nil {
		h.log.Debug().Err(err).Str("employee_id", employeeID).Msg("escritura fallida, se da de baja")
		h.metrics.ObserveNotification(event, "failed")
		h.Unregister(c)
		return
	}
	h.metrics.ObserveNotification(event, "delivered")
}

// Heartbeat envía un latido a todas las conexiones.
func (h *Hub) Heartbeat() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	payload := map[string]any{"ts": time.Now().UTC()}
	for _, id := range ids {
		h.Notify(id, EventHeartbeat, payload)
	}
}

// CloseAll da de baja todas las conexiones; los streams abiertos terminan.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*Conn)
	h.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
	h.metrics.SetLiveClients(0)
}

// Run emite latidos cada interval hasta que ctx termine; al terminar cierra las conexiones.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.CloseAll()
			return
		case <-ticker.C:
			h.Heartbeat()
		}
	}
}

// Connected indica si el empleado tiene una conexión viva.
func (h *Hub) Connected(employeeID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[employeeID]
	return ok
}

// Count conexiones vivas.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
