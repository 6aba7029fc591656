package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	picoagent "github.com/siriusctrl/picoagent"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return s
}

func TestMessageArchiveRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateThread(ctx, picoagent.Thread{ID: "th1", Title: "main", CreatedAt: 100}); err != nil {
		t.Fatalf("create thread: %v", err)
	}
	msgs := []picoagent.StoredMessage{
		{ID: "m1", ThreadID: "th1", Role: "user", Content: "hello", CreatedAt: 101},
		{ID: "m2", ThreadID: "th1", Role: "assistant", Content: "hi there", CreatedAt: 102},
		{ID: "m3", ThreadID: "th1", Role: "user", Content: "bye", CreatedAt: 103},
	}
	for _, m := range msgs {
		if err := s.AppendMessage(ctx, m); err != nil {
			t.Fatalf("append %s: %v", m.ID, err)
		}
	}

	got, err := s.RecentMessages(ctx, "th1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	// Most recent two, in chronological order.
	if len(got) != 2 || got[0].ID != "m2" || got[1].ID != "m3" {
		t.Errorf("recent = %+v", got)
	}

	all, err := s.RecentMessages(ctx, "th1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Content != "hello" {
		t.Errorf("all = %+v", all)
	}
}

func TestCreateThreadIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	th := picoagent.Thread{ID: "th1", CreatedAt: 1}
	if err := s.CreateThread(ctx, th); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateThread(ctx, th); err != nil {
		t.Errorf("second create errored: %v", err)
	}
}

func TestTaskEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	events := []picoagent.TaskEvent{
		{ID: "e1", TaskID: "t_001", Status: "completed", Detail: "done", CreatedAt: 10},
		{ID: "e2", TaskID: "t_001", Status: "failed", Detail: "retry later", CreatedAt: 20},
		{ID: "e3", TaskID: "t_002", Status: "aborted", CreatedAt: 30},
	}
	for _, e := range events {
		if err := s.RecordTaskEvent(ctx, e); err != nil {
			t.Fatalf("record %s: %v", e.ID, err)
		}
	}

	got, err := s.ListTaskEvents(ctx, "t_001", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "e1" || got[1].Status != "failed" {
		t.Errorf("events = %+v", got)
	}
}
