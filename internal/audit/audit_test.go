package audit

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the audit schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "audit-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schemaSQL := `
		CREATE TABLE audit_events (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL,
			method      TEXT NOT NULL,
			actor       TEXT NOT NULL,
			status      TEXT NOT NULL,
			temperature REAL,
			humidity    REAL,
			created_at  TEXT NOT NULL
		);
	`
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("applying audit schema: %v", err)
	}

	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func floatPtr(f float64) *float64 { return &f }

// ─── Repository ──────────────────────────────────────────────────────

func TestCreateGeneratesIDAndTimestamp(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))

	event := &Event{
		Kind:   KindDoorOpen,
		Method: MethodPassword,
		Actor:  "admin",
		Status: StatusSuccess,
	}
	if err := repo.Create(context.Background(), event); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if event.ID == "" {
		t.Error("ID not generated")
	}
	if event.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	seed := []Event{
		{Kind: KindDoorOpen, Method: MethodPassword, Actor: "admin", Status: StatusSuccess, CreatedAt: base},
		{Kind: KindDoorOpen, Method: MethodFingerprint, Actor: "slot-3", Status: StatusSuccess, CreatedAt: base.Add(time.Minute)},
		{Kind: KindSystemLocked, Method: MethodPassword, Actor: "keypad", Status: StatusFailed, CreatedAt: base.Add(2 * time.Minute)},
	}
	for i := range seed {
		if err := repo.Create(ctx, &seed[i]); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	// Unfiltered, most recent first
	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 3 {
		t.Errorf("Total = %d, want 3", result.Total)
	}
	if result.Events[0].Kind != KindSystemLocked {
		t.Errorf("first event = %s, want most recent (SYSTEM_LOCKED)", result.Events[0].Kind)
	}

	// Filter by kind
	result, err = repo.List(ctx, Filter{Kind: KindDoorOpen})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if result.Total != 2 {
		t.Errorf("filtered Total = %d, want 2", result.Total)
	}

	// Pagination
	result, err = repo.List(ctx, Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List paginated: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(result.Events))
	}
	if result.Events[0].Kind != KindDoorOpen {
		t.Errorf("paginated event = %s, want DOOR_OPEN", result.Events[0].Kind)
	}
}

func TestEnvironmentReadingsRoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	event := &Event{
		Kind: KindOverheat, Method: MethodSystem, Actor: "safety", Status: StatusTripped,
		Temperature: floatPtr(41.2), Humidity: floatPtr(38.5),
	}
	if err := repo.Create(ctx, event); err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := repo.List(ctx, Filter{Kind: KindOverheat})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	got := result.Events[0]
	if got.Temperature == nil || *got.Temperature != 41.2 {
		t.Errorf("Temperature = %v, want 41.2", got.Temperature)
	}
	if got.Humidity == nil || *got.Humidity != 38.5 {
		t.Errorf("Humidity = %v, want 38.5", got.Humidity)
	}
}

// ─── Recorder ────────────────────────────────────────────────────────

// mockPublisher captures published events.
type mockPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockPublisher) PublishAudit(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func TestRecorderPersistsAndPublishes(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	pub := &mockPublisher{}
	rec := NewRecorder(repo, pub, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	rec.Start(ctx)

	rec.Record(Event{Kind: KindDoorOpen, Method: MethodPassword, Actor: "admin", Status: StatusSuccess})

	// Let the consumer drain, then shut down.
	deadline := time.After(2 * time.Second)
	for pub.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("event never published")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	rec.Wait()

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 1 {
		t.Errorf("persisted %d events, want 1", result.Total)
	}
	if rec.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", rec.Dropped())
	}
}

func TestRecorderDropsOnOverflow(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	rec := NewRecorder(repo, nil, testLogger())

	// Consumer never started; fill the queue past capacity.
	for i := 0; i < queueSize+5; i++ {
		rec.Record(Event{Kind: KindDoorOpen, Method: MethodPassword, Actor: "x", Status: StatusDenied})
	}

	if rec.Dropped() != 5 {
		t.Errorf("Dropped = %d, want 5", rec.Dropped())
	}
}
