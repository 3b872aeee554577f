package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/risk"
)

func openTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "audit", "events.db"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEmitAndQuery(t *testing.T) {
	s := openTestSink(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	s.Emit(ctx, goVerify.AuditEvent{Timestamp: base, EventType: "pipeline_rejected", Identity: "alice", Stage: "CREDENTIAL", Error: "invalid_credentials"})
	s.Emit(ctx, goVerify.AuditEvent{Timestamp: base.Add(time.Minute), EventType: "pipeline_success", Identity: "alice", Success: true, Metadata: map[string]string{"stages_passed": "5"}})
	s.Emit(ctx, goVerify.AuditEvent{Timestamp: base.Add(2 * time.Minute), EventType: "pipeline_success", Identity: "bob", Success: true})

	if n, err := s.Count(ctx); err != nil || n != 3 {
		t.Fatalf("count=%d err=%v", n, err)
	}

	alice, err := s.Query(ctx, Filter{Identity: "alice"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(alice) != 2 {
		t.Fatalf("expected 2 events for alice, got %d", len(alice))
	}
	if alice[0].EventType != "pipeline_success" || !alice[0].Success || alice[0].Metadata["stages_passed"] != "5" {
		t.Fatalf("unexpected newest event %+v", alice[0])
	}
	if alice[1].Stage != "CREDENTIAL" || alice[1].Error != "invalid_credentials" || !alice[1].Timestamp.Equal(base) {
		t.Fatalf("unexpected oldest event %+v", alice[1])
	}

	successes, err := s.Query(ctx, Filter{EventType: "pipeline_success", Limit: 1})
	if err != nil || len(successes) != 1 || successes[0].Identity != "bob" {
		t.Fatalf("unexpected limited query %+v err=%v", successes, err)
	}

	recent, err := s.Query(ctx, Filter{Since: base.Add(30 * time.Second)})
	if err != nil || len(recent) != 2 {
		t.Fatalf("since filter: %d events err=%v", len(recent), err)
	}
}

func TestPrune(t *testing.T) {
	s := openTestSink(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 4 {
		s.Emit(ctx, goVerify.AuditEvent{Timestamp: base.Add(time.Duration(i) * time.Hour), EventType: "pipeline_rejected"})
	}
	removed, err := s.Prune(ctx, base.Add(2*time.Hour))
	if err != nil || removed != 2 {
		t.Fatalf("removed=%d err=%v", removed, err)
	}
	if n, _ := s.Count(ctx); n != 2 {
		t.Fatalf("expected 2 remaining, got %d", n)
	}
}

func TestEmitAfterCloseCountsFailure(t *testing.T) {
	s := openTestSink(t)
	_ = s.Close()
	s.Emit(context.Background(), goVerify.AuditEvent{EventType: "pipeline_success"})
	if s.Failed() != 1 {
		t.Fatalf("expected one failed write, got %d", s.Failed())
	}
}

func TestEngineWritesThroughSink(t *testing.T) {
	s := openTestSink(t)
	cfg := goVerify.DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16

	e, err := goVerify.New().WithConfig(cfg).WithAuditSink(s).WithRiskScorer(risk.StaticScorer(0)).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := context.Background()
	if err := e.RegisterCredential(ctx, "alice", "correct horse battery"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := e.Authenticate(ctx, goVerify.AuthRequest{Identity: "alice", Secret: "wrong"}); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	e.Close()

	events, err := s.Query(ctx, Filter{Identity: "alice", EventType: "pipeline_rejected"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 || events[0].Stage != "CREDENTIAL" || events[0].Error != "invalid_credentials" {
		t.Fatalf("unexpected events %+v", events)
	}
}
