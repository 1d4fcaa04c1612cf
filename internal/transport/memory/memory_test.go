package memory

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sadsciencee/modalkit/internal/pubsub"
	"github.com/sadsciencee/modalkit/internal/transport"
)

type inbox struct {
	mu   sync.Mutex
	msgs []string
	ch   chan struct{}
}

func newInbox() *inbox {
	return &inbox{ch: make(chan struct{}, 128)}
}

func (i *inbox) add(data []byte) {
	i.mu.Lock()
	i.msgs = append(i.msgs, string(data))
	i.mu.Unlock()
	i.ch <- struct{}{}
}

func (i *inbox) wait(t *testing.T, n int) []string {
	t.Helper()
	for k := 0; k < n; k++ {
		select {
		case <-i.ch:
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for message %d of %d", k+1, n)
		}
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.msgs...)
}

func (i *inbox) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.msgs)
}

func newEnv(t *testing.T) *Environment {
	t.Helper()
	env := NewEnvironment(WithLogger(zap.NewNop()))
	t.Cleanup(env.Close)
	return env
}

func mustContext(t *testing.T, env *Environment, name string) *Context {
	t.Helper()
	c, err := env.NewContext(name)
	if err != nil {
		t.Fatalf("failed to create context %q: %v", name, err)
	}
	return c
}

// flush waits until every task queued on c's loop so far has run.
func flush(c *Context) {
	c.Loop().Do(func() {})
}

func TestChannelDelivery(t *testing.T) {
	t.Run("messages queue until start and arrive in order", func(t *testing.T) {
		env := newEnv(t)
		host := mustContext(t, env, "host")

		a, b, err := host.NewChannel()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := newInbox()
		b.SetHandler(got.add)

		for _, m := range []string{"1", "2", "3"} {
			if err := a.PostMessage([]byte(m)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		flush(host)
		if got.count() != 0 {
			t.Fatal("expected no delivery before Start")
		}

		b.Start()
		msgs := got.wait(t, 3)
		if len(msgs) != 3 || msgs[0] != "1" || msgs[1] != "2" || msgs[2] != "3" {
			t.Errorf("expected [1 2 3], got %v", msgs)
		}
	})

	t.Run("detached handler drops messages", func(t *testing.T) {
		env := newEnv(t)
		host := mustContext(t, env, "host")
		a, b, _ := host.NewChannel()

		got := newInbox()
		b.SetHandler(got.add)
		b.Start()
		b.SetHandler(nil)

		_ = a.PostMessage([]byte("x"))
		flush(host)
		if got.count() != 0 {
			t.Errorf("expected no delivery after detach, got %d", got.count())
		}
	})

	t.Run("close disentangles both ends", func(t *testing.T) {
		env := newEnv(t)
		host := mustContext(t, env, "host")
		a, b, _ := host.NewChannel()

		got := newInbox()
		b.SetHandler(got.add)
		b.Start()

		if err := b.Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := a.PostMessage([]byte("after close")); err != nil {
			t.Errorf("expected post to closed peer to drop silently, got %v", err)
		}
		if err := b.PostMessage([]byte("x")); !errors.Is(err, transport.ErrClosed) {
			t.Errorf("expected ErrClosed posting on closed port, got %v", err)
		}
		flush(host)
		if got.count() != 0 {
			t.Errorf("expected no delivery, got %d", got.count())
		}
	})
}

func TestTransferThroughWindow(t *testing.T) {
	env := newEnv(t)
	host := mustContext(t, env, "host")
	guest := mustContext(t, env, "modal.hello.1")

	received := make(chan transport.Message, 1)
	stop := guest.Listen(func(msg transport.Message) {
		received <- msg
	})
	defer stop()

	local, remote, _ := host.NewChannel()
	if err := env.Window("modal.hello.1").PostMessage(transport.Message{
		Data:  []byte("init"),
		Ports: []transport.Port{remote},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var msg transport.Message
	select {
	case msg = <-received:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for window message")
	}
	if string(msg.Data) != "init" || len(msg.Ports) != 1 {
		t.Fatalf("unexpected message: %+v", msg)
	}

	claimed := msg.Ports[0]
	if claimed.ID() != remote.ID() {
		t.Errorf("expected transferred port %s, got %s", remote.ID(), claimed.ID())
	}
	if owner := claimed.(*port).owner; owner != guest {
		t.Errorf("expected port to be owned by guest, got %s", owner.Name())
	}

	fromHost := newInbox()
	claimed.SetHandler(fromHost.add)
	claimed.Start()
	_ = local.PostMessage([]byte("hello guest"))
	if got := fromHost.wait(t, 1); got[0] != "hello guest" {
		t.Errorf("expected hello guest, got %v", got)
	}

	fromGuest := newInbox()
	local.SetHandler(fromGuest.add)
	local.Start()
	_ = claimed.PostMessage([]byte("hello host"))
	if got := fromGuest.wait(t, 1); got[0] != "hello host" {
		t.Errorf("expected hello host, got %v", got)
	}
}

func TestWindowErrors(t *testing.T) {
	env := newEnv(t)
	other := NewEnvironment(WithLogger(zap.NewNop()))
	defer other.Close()

	host := mustContext(t, env, "host")
	foreign := mustContext(t, other, "elsewhere")

	if err := env.Window("missing").PostMessage(transport.Message{}); !errors.Is(err, transport.ErrNoTarget) {
		t.Errorf("expected ErrNoTarget, got %v", err)
	}

	_, p, _ := foreign.NewChannel()
	if err := host.PostMessage(transport.Message{Ports: []transport.Port{p}}); !errors.Is(err, transport.ErrForeignPort) {
		t.Errorf("expected ErrForeignPort, got %v", err)
	}

	if _, err := env.NewContext("host"); err == nil {
		t.Error("expected duplicate context name to fail")
	}
}

func TestListenStop(t *testing.T) {
	env := newEnv(t)
	c := mustContext(t, env, "c")

	got := newInbox()
	stop := c.Listen(func(msg transport.Message) { got.add(msg.Data) })

	_ = c.PostMessage(transport.Message{Data: []byte("one")})
	got.wait(t, 1)

	stop()
	stop()
	_ = c.PostMessage(transport.Message{Data: []byte("two")})
	flush(c)
	if got.count() != 1 {
		t.Errorf("expected listener to stop, got %d messages", got.count())
	}
}

func TestContextClose(t *testing.T) {
	reg := pubsub.NewRegistry()
	env := NewEnvironment(WithLogger(zap.NewNop()), WithRegistry(reg))
	defer env.Close()

	host, _ := env.NewContext("host")
	guest, _ := env.NewContext("guest")

	if _, ok := reg.Get("window:guest"); !ok {
		t.Fatal("expected guest window bus to be registered")
	}

	local, remote, _ := host.NewChannel()
	_ = guest.PostMessage(transport.Message{Ports: []transport.Port{remote}})

	guest.Close()

	if _, ok := env.Lookup("guest"); ok {
		t.Error("expected guest to be removed from environment")
	}
	if _, ok := reg.Get("window:guest"); ok {
		t.Error("expected guest window bus to be unregistered")
	}
	if err := remote.PostMessage([]byte("x")); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("expected transferred port to close with its context, got %v", err)
	}
	if err := local.PostMessage([]byte("x")); err != nil {
		t.Errorf("expected post to dead peer to drop silently, got %v", err)
	}
	if err := guest.PostMessage(transport.Message{}); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	if _, _, err := guest.NewChannel(); !errors.Is(err, transport.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
