package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return repo
}

func TestSessionLifecycle(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	started := time.Now().Truncate(time.Second)
	err := repo.RecordStart(ctx, CallSession{
		SessionID: "s1",
		ChannelID: "session_abc",
		Mode:      "video",
		StartedAt: started,
	})
	if err != nil {
		t.Fatalf("RecordStart: %v", err)
	}

	if err := repo.SetAgentID(ctx, "s1", "agent-1"); err != nil {
		t.Fatalf("SetAgentID: %v", err)
	}

	got, err := repo.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got == nil {
		t.Fatal("GetSession returned nil for existing session")
	}
	if got.ChannelID != "session_abc" || got.Mode != "video" || got.AgentID != "agent-1" {
		t.Errorf("session = %+v, want recorded fields", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, started)
	}
	if got.EndedAt != nil {
		t.Errorf("ended_at = %v, want nil while active", got.EndedAt)
	}

	ended := started.Add(90 * time.Second)
	if err := repo.RecordEnd(ctx, "s1", ended); err != nil {
		t.Fatalf("RecordEnd: %v", err)
	}

	got, err = repo.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession after end: %v", err)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(ended) {
		t.Errorf("ended_at = %v, want %v", got.EndedAt, ended)
	}
}

func TestRecordEndIdempotent(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	start := time.Now().Truncate(time.Second)
	if err := repo.RecordStart(ctx, CallSession{SessionID: "s1", ChannelID: "c1", Mode: "voice", StartedAt: start}); err != nil {
		t.Fatalf("RecordStart: %v", err)
	}

	first := start.Add(time.Minute)
	if err := repo.RecordEnd(ctx, "s1", first); err != nil {
		t.Fatalf("first RecordEnd: %v", err)
	}
	// A second end must not move the timestamp.
	if err := repo.RecordEnd(ctx, "s1", first.Add(time.Hour)); err != nil {
		t.Fatalf("second RecordEnd: %v", err)
	}

	got, err := repo.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(first) {
		t.Errorf("ended_at = %v, want first end %v preserved", got.EndedAt, first)
	}
}

func TestRecordEndUnknownSession(t *testing.T) {
	repo := newTestStore(t)
	if err := repo.RecordEnd(context.Background(), "never-started", time.Now()); err != nil {
		t.Errorf("RecordEnd for unknown session = %v, want no-op", err)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	repo := newTestStore(t)
	got, err := repo.GetSession(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got != nil {
		t.Errorf("GetSession = %+v, want nil", got)
	}
}

func TestCountActive(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := repo.RecordStart(ctx, CallSession{SessionID: id, ChannelID: "c-" + id, Mode: "video", StartedAt: now}); err != nil {
			t.Fatalf("RecordStart(%s): %v", id, err)
		}
	}
	if err := repo.RecordEnd(ctx, "s2", now.Add(time.Minute)); err != nil {
		t.Fatalf("RecordEnd: %v", err)
	}

	count, err := repo.CountActive(ctx)
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if count != 2 {
		t.Errorf("CountActive = %d, want 2", count)
	}
}

func TestPing(t *testing.T) {
	repo := newTestStore(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
