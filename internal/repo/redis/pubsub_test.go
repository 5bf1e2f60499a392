package redis_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/nakuljn/ember-dating/internal/repo/redis"
)

func TestEventBusRoundTrip(t *testing.T) {
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mini.Close()

	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := redrepo.NewEventBus(client, "chat:test")
	got := make(chan string, 1)
	if err := bus.Subscribe(ctx, func(payload []byte) { got <- string(payload) }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := bus.Publish(ctx, []byte(`{"kind":"message"}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case payload := <-got:
		if payload != `{"kind":"message"}` {
			t.Fatalf("unexpected payload %q", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("payload was not delivered")
	}
}

func TestRateRepoWindow(t *testing.T) {
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mini.Close()

	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	defer client.Close()

	repo := redrepo.NewRateRepo(client)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		count, ttl, err := repo.IncrementWindow(ctx, "rl:test", 10*time.Second)
		if err != nil {
			t.Fatalf("increment window: %v", err)
		}
		if count != int64(i) || ttl <= 0 {
			t.Fatalf("unexpected window state count=%d ttl=%s", count, ttl)
		}
	}

	mini.FastForward(11 * time.Second)
	count, _, err := repo.WindowState(ctx, "rl:test")
	if err != nil {
		t.Fatalf("window state: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected expired window, got %d", count)
	}
}
