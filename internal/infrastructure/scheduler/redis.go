package scheduler

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jhoicas/produccion-api/internal/application/rolechange"
	"github.com/jhoicas/produccion-api/pkg/logger"
)

var _ rolechange.Scheduler = (*Redis)(nil)

// claimScript retira al empleado del ZSET solo si su vencimiento sigue siendo <= now y devuelve el
// role_change_id asociado. Un reprogramado entre la lectura y el reclamo no se dispara.
var claimScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not score or tonumber(score) > tonumber(ARGV[2]) then
  return false
end
local id = redis.call('HGET', KEYS[2], ARGV[1])
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
return id
`)

// RedisOptions ajustes del planificador persistente.
type RedisOptions struct {
	Prefix       string        // prefijo de claves, "produccion" por defecto
	PollInterval time.Duration // 1s por defecto
	BatchSize    int64         // 100 por defecto
}

// Redis planificador persistente: un ZSET (empleado -> vencimiento en ms) y un HASH
// (empleado -> role_change_id). Sobrevive reinicios y varias réplicas pueden sondear a la vez;
// el script de reclamo garantiza un único disparo por trabajo.
type Redis struct {
	client *redis.Client
	dueKey string
	jobKey string
	opts   RedisOptions
	log    *logger.Logger

	mu      sync.Mutex
	handler rolechange.Handler
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewRedis(client *redis.Client, opts RedisOptions, log *logger.Logger) *Redis {
	if opts.Prefix == "" {
		opts.Prefix = "produccion"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	return &Redis{
		client: client,
		dueKey: opts.Prefix + ":autologout:due",
		jobKey: opts.Prefix + ":autologout:jobs",
		opts:   opts,
		log:    logger.OrNop(log).Component("scheduler.redis"),
	}
}

// Start arranca el sondeo en segundo plano.
func (r *Redis) Start(h rolechange.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
}

func (r *Redis) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (r *Redis) Schedule(ctx context.Context, job rolechange.Job, at time.Time) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZAdd(ctx, r.dueKey, &redis.Z{Score: float64(at.UnixMilli()), Member: job.EmployeeID})
		p.HSet(ctx, r.jobKey, job.EmployeeID, job.RoleChangeID)
		return nil
	})
	return err
}

func (r *Redis) Cancel(ctx context.Context, employeeID string) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, r.dueKey, employeeID)
		p.HDel(ctx, r.jobKey, employeeID)
		return nil
	})
	return err
}

// Poll reclama y ejecuta los trabajos vencidos a now. Devuelve cuántos disparó.
func (r *Redis) Poll(ctx context.Context, now time.Time) (int, error) {
	nowMs := now.UnixMilli()
	due, err := r.client.ZRangeByScore(ctx, r.dueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(nowMs, 10),
		Count: r.opts.BatchSize,
	}).Result()
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	h := r.handler
	r.mu.Unlock()

	fired := 0
	for _, employeeID := range due {
		roleChangeID, err := claimScript.Run(ctx, r.client, []string{r.dueKey, r.jobKey}, employeeID, nowMs).Text()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fired, err
		}
		fired++
		if h != nil {
			h(ctx, rolechange.Job{EmployeeID: employeeID, RoleChangeID: roleChangeID})
		}
	}
	return fired, nil
}

func (r *Redis) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := r.Poll(ctx, now); err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Msg("sondeo de cierres programados")
			}
		}
	}
}
