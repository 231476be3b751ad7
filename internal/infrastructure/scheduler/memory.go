// Package scheduler implementaciones del planificador de cierres de sesión diferidos.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/produccion-api/internal/application/rolechange"
)

var _ rolechange.Scheduler = (*Memory)(nil)

type memEntry struct {
	job   rolechange.Job
	timer *time.Timer
}

// Memory planificador en proceso con un temporizador por empleado. Los trabajos se pierden al
// reiniciar; el barrido periódico del tracker cubre ese caso.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	handler rolechange.Handler
	stopped bool
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*memEntry)}
}

func (m *Memory) Start(h rolechange.Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
	m.stopped = false
}

// Schedule reemplaza el trabajo pendiente del empleado, si lo hay.
func (m *Memory) Schedule(_ context.Context, job rolechange.Job, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.entries[job.EmployeeID]; ok {
		prev.timer.Stop()
	}
	e := &memEntry{job: job}
	m.entries[job.EmployeeID] = e
	e.timer = time.AfterFunc(time.Until(at), func() { m.fire(e) })
	return nil
}

func (m *Memory) Cancel(_ context.Context, employeeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[employeeID]; ok {
		e.timer.Stop()
		delete(m.entries, employeeID)
	}
	return nil
}

// Pending indica si el empleado tiene un trabajo programado.
func (m *Memory) Pending(employeeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[employeeID]
	return ok
}

func (m *Memory) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		e.timer.Stop()
		delete(m.entries, id)
	}
	m.stopped = true
}

func (m *Memory) fire(e *memEntry) {
	m.mu.Lock()
	// Un temporizador reemplazado o cancelado puede haber disparado antes del Stop.
	if m.entries[e.job.EmployeeID] != e || m.stopped {
		m.mu.Unlock()
		return
	}
	delete(m.entries, e.job.EmployeeID)
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(context.Background(), e.job)
	}
}
