package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jhoicas/produccion-api/internal/application/rolechange"
	"github.com/jhoicas/produccion-api/pkg/logger"
	"github.com/jhoicas/produccion-api/pkg/metrics"
)

var _ rolechange.Notifier = (*Bus)(nil)

const redisTimeout = 3 * time.Second

// Local entrega en las conexiones de esta instancia (el hub SSE).
type Local interface {
	Notify(employeeID, event string, payload any)
}

type envelope struct {
	EmployeeID string          `json:"employee_id"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
}

// Bus publica cada notificación en un canal Redis; todas las instancias suscritas la entregan a
// sus conexiones locales. El empleado puede estar conectado a cualquier réplica.
type Bus struct {
	client  *redis.Client
	channel string
	local   Local
	log     *logger.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

func NewBus(client *redis.Client, prefix string, local Local, log *logger.Logger, m *metrics.Metrics) *Bus {
	if prefix == "" {
		prefix = "produccion"
	}
	return &Bus{
		client:  client,
		channel: prefix + ":events",
		local:   local,
		log:     logger.OrNop(log).Component("redisbus"),
		metrics: m,
	}
}

// Notify publica la notificación. Si Redis falla se entrega solo localmente.
func (b *Bus) Notify(employeeID, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		b.log.Error().Err(err).Str("event", event).Msg("serializar notificación")
		return
	}
	msg, _ := json.Marshal(envelope{EmployeeID: employeeID, Event: event, Payload: raw})

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, msg).Err(); err != nil {
		b.log.Warn().Err(err).Str("event", event).Msg("publicar notificación; entrega local")
		b.local.Notify(employeeID, event, json.RawMessage(raw))
		return
	}
	b.metrics.ObserveNotification(event, "published")
}

// Start se suscribe al canal (esperando la confirmación) y reenvía los mensajes al hub local
// hasta Close o hasta que ctx termine.
func (b *Bus) Start(ctx context.Context) error {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("redis: suscripción a %s: %w", b.channel, err)
	}
	done := make(chan struct{})
	b.mu.Lock()
	b.pubsub, b.done = ps, done
	b.mu.Unlock()

	go func() {
		defer close(done)
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = ps.Close()
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				b.deliver(m.Payload)
			}
		}
	}()
	return nil
}

// Close cancela la suscripción y espera al lector.
func (b *Bus) Close() error {
	b.mu.Lock()
	ps, done := b.pubsub, b.done
	b.pubsub, b.done = nil, nil
	b.mu.Unlock()
	if ps == nil {
		return nil
	}
	_ = ps.Close()
	<-done
	return nil
}

func (b *Bus) deliver(data string) {
	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil || env.EmployeeID == "" {
		b.log.Warn().Str("data", data).Msg("mensaje de bus inválido")
		return
	}
	b.local.Notify(env.EmployeeID, env.Event, env.Payload)
}
