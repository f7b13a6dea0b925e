package main

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestManager(cfg *Config) (*RoomManager, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return &RoomManager{
		rooms:     make(map[string]*Hub),
		cfg:       cfg,
		clock:     clock,
		questions: twoQuestions(),
	}, clock
}

func stopHub(t *testing.T, h *Hub) {
	t.Helper()
	h.requestShutdown()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not shut down")
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	mgr, _ := newTestManager(testConfig())

	hub, err := mgr.create("trivia", "mod-id", "Mod")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer stopHub(t, hub)

	if _, err := mgr.create("trivia", "other-id", "Other"); err != errRoomAlreadyExists {
		t.Errorf("duplicate create = %v, want errRoomAlreadyExists", err)
	}
	if mgr.count() != 1 {
		t.Errorf("room count = %d, want 1", mgr.count())
	}
}

func TestLookup(t *testing.T) {
	mgr, _ := newTestManager(testConfig())

	if _, err := mgr.lookup("nope"); err != errRoomNotFound {
		t.Errorf("lookup missing = %v, want errRoomNotFound", err)
	}

	hub, err := mgr.create("trivia", "mod-id", "Mod")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer stopHub(t, hub)

	got, err := mgr.lookup("trivia")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got != hub {
		t.Error("lookup returned a different hub")
	}
}

// A torn-down room must never evict a successor that already reclaimed
// its ID.
func TestRemoveComparesHub(t *testing.T) {
	mgr, _ := newTestManager(testConfig())

	stale := newHub("trivia", "mod-id", "Mod", mgr)

	hub, err := mgr.create("trivia", "mod-id", "Mod")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer stopHub(t, hub)

	mgr.remove("trivia", stale)
	if mgr.count() != 1 {
		t.Error("stale remove evicted the live room")
	}

	mgr.remove("trivia", hub)
	if mgr.count() != 0 {
		t.Error("live remove left the room registered")
	}

	// double remove is harmless
	mgr.remove("trivia", hub)
}

func TestReaperClosesIdleRooms(t *testing.T) {
	cfg := testConfig()
	cfg.sessionTimeout = 10 * time.Minute

	clock := clockwork.NewFakeClock()
	mgr := newRoomManager(cfg, clock, twoQuestions())

	// Wait for the reaper's ticker before advancing past it.
	clock.BlockUntil(1)

	hub, err := mgr.create("idle", "mod-id", "Mod")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Past the timeout plus one reaper tick with no activity.
	clock.Advance(cfg.sessionTimeout + time.Minute)

	select {
	case <-hub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("idle room not reaped")
	}

	if mgr.count() != 0 {
		t.Errorf("room count = %d after reaping, want 0", mgr.count())
	}
}

func TestIdleTracking(t *testing.T) {
	mgr, clock := newTestManager(testConfig())

	hub := newHub("trivia", "mod-id", "Mod", mgr)

	start := clock.Now()
	if !hub.idleSince().Equal(start) {
		t.Errorf("idleSince = %v, want creation time %v", hub.idleSince(), start)
	}

	clock.Advance(10 * time.Minute)
	if !hub.idleSince().Equal(start) {
		t.Error("idleSince advanced without activity")
	}

	hub.touch()
	if !hub.idleSince().Equal(start.Add(10 * time.Minute)) {
		t.Errorf("idleSince = %v after touch, want %v", hub.idleSince(), start.Add(10*time.Minute))
	}
}
