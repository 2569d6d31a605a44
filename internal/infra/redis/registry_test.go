package redis

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/app"
	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
)

func newTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRegistry(client, time.Hour), mr
}

func newLiveSession(pin string) *app.Session {
	return app.NewSession("quiz-1", "host-1", pin, domain.SessionSettings{}, domain.Quiz{ID: "quiz-1"})
}

func TestRegistryClaimsPINInRedis(t *testing.T) {
	registry, mr := newTestRegistry(t)
	session := newLiveSession("123456")

	if err := registry.Register(session); err != nil {
		t.Fatalf("register: %v", err)
	}
	if !mr.Exists("lobby:pin:123456") {
		t.Fatalf("expected redis pin claim to be set")
	}
	if got, _ := mr.Get("lobby:pin:123456"); got != session.ID() {
		t.Fatalf("claim holds %q, want session id", got)
	}

	if err := registry.Register(newLiveSession("123456")); err != domain.ErrPINTaken {
		t.Fatalf("expected pin conflict, got %v", err)
	}

	registry.Release(session)
	if mr.Exists("lobby:pin:123456") {
		t.Fatalf("expected redis pin claim to be removed")
	}
	if _, ok := registry.GetByPIN("123456"); ok {
		t.Fatalf("released pin still resolves locally")
	}
}

func TestRegistryRespectsForeignClaims(t *testing.T) {
	registry, mr := newTestRegistry(t)

	// Another instance already claimed this pin.
	if err := mr.Set("lobby:pin:777777", "other-session"); err != nil {
		t.Fatalf("seed claim: %v", err)
	}
	if err := registry.Register(newLiveSession("777777")); err != domain.ErrPINTaken {
		t.Fatalf("expected conflict with foreign claim, got %v", err)
	}
}

func TestRegistryDropsOwnClaimWhenLocalPinHeld(t *testing.T) {
	registry, mr := newTestRegistry(t)
	first := newLiveSession("111111")
	if err := registry.Register(first); err != nil {
		t.Fatalf("register: %v", err)
	}

	// The redis claim expires while the local session still lives; a new
	// registration then wins SETNX but must lose to the local index and
	// clean up the claim it just wrote.
	mr.Del("lobby:pin:111111")
	if err := registry.Register(newLiveSession("111111")); err != domain.ErrPINTaken {
		t.Fatalf("expected conflict with live local session, got %v", err)
	}
	if mr.Exists("lobby:pin:111111") {
		t.Fatalf("losing registration left its claim in redis")
	}
	if got, ok := registry.GetByPIN("111111"); !ok || got.ID() != first.ID() {
		t.Fatalf("live session lost its pin")
	}
}

func TestRegistryRemoveForgetsEverything(t *testing.T) {
	registry, mr := newTestRegistry(t)
	session := newLiveSession("222222")
	if err := registry.Register(session); err != nil {
		t.Fatalf("register: %v", err)
	}

	registry.Remove(session)
	if mr.Exists("lobby:pin:222222") {
		t.Fatalf("removed session left its redis claim")
	}
	if _, ok := registry.GetByPIN("222222"); ok {
		t.Fatalf("removed session still resolves by pin")
	}
	if _, ok := registry.Get(session.ID()); ok {
		t.Fatalf("removed session still resolves by id")
	}
}

func TestRegistryLocalLookups(t *testing.T) {
	registry, _ := newTestRegistry(t)
	session := newLiveSession("424242")
	if err := registry.Register(session); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, ok := registry.GetByPIN("424242")
	if !ok || got.ID() != session.ID() {
		t.Fatalf("lookup by pin failed")
	}
	if _, ok := registry.Get(session.ID()); !ok {
		t.Fatalf("lookup by id failed")
	}

	registry.Release(session)
	// Ended sessions stay addressable by id for post-game reads.
	if _, ok := registry.Get(session.ID()); !ok {
		t.Fatalf("released session no longer addressable by id")
	}
}
