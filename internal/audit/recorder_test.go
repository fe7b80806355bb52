package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"kastel.org/internal/auth"
)

type captureSink struct {
	entries []*auth.AuditEntry
	err     error
}

func (s *captureSink) Append(_ context.Context, entry *auth.AuditEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func TestRecordDecisionAppendsEntry(t *testing.T) {
	sink := &captureSink{}
	rec := NewRecorder(sink, nil)

	ctx := WithRequestID(context.Background(), "req-42")
	rec.RecordDecision(ctx, auth.DecisionEvent{
		Principal: auth.Principal{UserID: "u-1", OrganizationID: "org-a"},
		Action:    auth.ActionDelete,
		Resource:  auth.ResourceDescriptor{Type: auth.ResourceProject, ID: "p-1", OrganizationID: "org-a"},
		Decision:  auth.Decision{Allowed: false, Reason: auth.ReasonNotOwner},
		OccurredAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	})

	if len(sink.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(sink.entries))
	}
	got := sink.entries[0]
	if got.Result != "deny" {
		t.Fatalf("result = %q, want deny", got.Result)
	}
	if got.Reason != string(auth.ReasonNotOwner) {
		t.Fatalf("reason = %q, want %q", got.Reason, auth.ReasonNotOwner)
	}
	if got.ActorUserID != "u-1" || got.ResourceID != "p-1" {
		t.Fatalf("unexpected actor/resource: %+v", got)
	}
	if got.RequestID != "req-42" {
		t.Fatalf("request id = %q, want req-42", got.RequestID)
	}
}

func TestRecordDecisionSwallowsSinkFailure(t *testing.T) {
	sink := &captureSink{err: errors.New("disk full")}
	rec := NewRecorder(sink, nil)

	// Must not panic or propagate the error in any observable way.
	rec.RecordDecision(context.Background(), auth.DecisionEvent{
		Principal:  auth.Principal{UserID: "u-1"},
		Action:     auth.ActionRead,
		Resource:   auth.ResourceDescriptor{Type: auth.ResourceDocument, ID: "d-1"},
		Decision:   auth.Decision{Allowed: true},
		OccurredAt: time.Now(),
	})
}

func TestRecordEventFillsRequestIDFromContext(t *testing.T) {
	sink := &captureSink{}
	rec := NewRecorder(sink, nil)

	ctx := WithRequestID(context.Background(), "req-7")
	rec.RecordEvent(ctx, &auth.AuditEntry{
		OccurredAt:  time.Now(),
		ActorUserID: "u-2",
		Action:      "auth.login",
		Result:      "allow",
	})

	if len(sink.entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(sink.entries))
	}
	if sink.entries[0].RequestID != "req-7" {
		t.Fatalf("request id = %q, want req-7", sink.entries[0].RequestID)
	}
}

func TestNilSinkOnlyLogs(t *testing.T) {
	rec := NewRecorder(nil, nil)
	rec.RecordEvent(context.Background(), &auth.AuditEntry{Action: "auth.login", Result: "deny"})
}

func TestRequestIDContextRoundTrip(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("empty context returned %q", got)
	}
	ctx := WithRequestID(context.Background(), "  ")
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("blank id returned %q", got)
	}
	ctx = WithRequestID(context.Background(), "abc")
	if got := RequestIDFromContext(ctx); got != "abc" {
		t.Fatalf("got %q, want abc", got)
	}
}
