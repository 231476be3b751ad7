package sse_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/produccion-api/internal/infrastructure/sse"
)

// safeBuffer bytes.Buffer con mutex (el hub escribe desde otras goroutines).
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteEvent_Framing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sse.WriteEvent(&buf, "force-logout", []byte(`{"reason":"role_changed"}`)))
	assert.Equal(t, "event: force-logout\ndata: {\"reason\":\"role_changed\"}\n\n", buf.String())
}

func TestHub_NotifyEntregaAlEmpleado(t *testing.T) {
	hub := sse.NewHub(nil, nil)
	out := &safeBuffer{}
	hub.Register("e1", bufio.NewWriter(out))

	hub.Notify("e1", "role-changed", map[string]string{"new_role": "supervisor"})
	assert.Equal(t, "event: role-changed\ndata: {\"new_role\":\"supervisor\"}\n\n", out.String())

	// Otro empleado no conectado: se descarta en silencio.
	hub.Notify("e2", "role-changed", nil)
	assert.Equal(t, 1, hub.Count())
}

func TestHub_RegisterReemplazaConexionPrevia(t *testing.T) {
	hub := sse.NewHub(nil, nil)
	first, second := &safeBuffer{}, &safeBuffer{}
	c1 := hub.Register("e1", bufio.NewWriter(first))
	c2 := hub.Register("e1", bufio.NewWriter(second))

	select {
	case <-c1.Done():
	default:
		t.Fatal("la conexión reemplazada debe cerrarse")
	}

	hub.Notify("e1", "ping", 1)
	assert.Empty(t, first.String())
	assert.Contains(t, second.String(), "event: ping")

	// Dar de baja la conexión vieja no afecta a la vigente.
	hub.Unregister(c1)
	assert.True(t, hub.Connected("e1"))
	hub.Unregister(c2)
	assert.False(t, hub.Connected("e1"))
}

func TestHub_FalloDeEscrituraDaDeBaja(t *testing.T) {
	hub := sse.NewHub(nil, nil)
	c := hub.Register("e1", bufio.NewWriterSize(brokenWriter{}, 16))

	hub.Notify("e1", "force-logout", map[string]string{"reason": strings.Repeat("x", 64)})
	assert.False(t, hub.Connected("e1"))
	select {
	case <-c.Done():
	default:
		t.Fatal("la conexión fallida debe cerrarse")
	}
}

func TestHub_Heartbeat(t *testing.T) {
	hub := sse.NewHub(nil, nil)
	a, b := &safeBuffer{}, &safeBuffer{}
	hub.Register("a", bufio.NewWriter(a))
	hub.Register("b", bufio.NewWriter(b))

	hub.Heartbeat()
	assert.Contains(t, a.String(), "event: heartbeat\n")
	assert.Contains(t, b.String(), "event: heartbeat\n")
}

func TestHub_RunCierraAlTerminar(t *testing.T) {
	hub := sse.NewHub(nil, nil)
	c := hub.Register("e1", bufio.NewWriter(&safeBuffer{}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()
	<-done

	select {
	case <-c.Done():
	default:
		t.Fatal("la conexión debe cerrarse al detener el hub")
	}
	assert.Zero(t, hub.Count())
}
