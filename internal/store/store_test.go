package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(MemoryDSN)
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_UnknownSessionIsEmptyAndRegistered(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	msgs, err := s.History(ctx, "Session 1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Fatalf("want empty non-nil history, got %#v", msgs)
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != "Session 1" || sessions[0].Messages != 0 {
		t.Errorf("unexpected sessions: %+v", sessions)
	}
}

func Test_Store_AppendExchangeAddsTwoTurns(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	before, _ := s.History(ctx, "s")
	if err := s.AppendExchange(ctx, "s", "what is it?", "a test"); err != nil {
		t.Fatalf("append exchange: %v", err)
	}
	after, err := s.History(ctx, "s")
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	if len(after) != len(before)+2 {
		t.Fatalf("want %d messages, got %d", len(before)+2, len(after))
	}
	if after[0].Role != RoleUser || after[0].Content != "what is it?" {
		t.Errorf("msg[0]: want user/what is it?, got %s/%s", after[0].Role, after[0].Content)
	}
	if after[1].Role != RoleAssistant || after[1].Content != "a test" {
		t.Errorf("msg[1]: want assistant/a test, got %s/%s", after[1].Role, after[1].Content)
	}
	if after[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func Test_Store_OrderPreserved(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 6; i += 2 {
		if err := s.AppendExchange(ctx, "ordered", fmt.Sprintf("m%d", i), fmt.Sprintf("m%d", i+1)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	msgs, err := s.History(ctx, "ordered")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	for i, m := range msgs {
		if want := fmt.Sprintf("m%d", i); m.Content != want {
			t.Errorf("msg[%d] = %q, want %q", i, m.Content, want)
		}
	}
}

func Test_Store_SessionIsolation(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AppendExchange(ctx, "Session 1", "q1", "a1"); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendExchange(ctx, "Session 2", "q2", "a2"); err != nil {
		t.Fatal(err)
	}

	one, _ := s.History(ctx, "Session 1")
	two, _ := s.History(ctx, "Session 2")
	if len(one) != 2 || one[0].Content != "q1" {
		t.Errorf("Session 1: %+v", one)
	}
	if len(two) != 2 || two[0].Content != "q2" {
		t.Errorf("Session 2: %+v", two)
	}
}

func Test_Store_EmptySessionID(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	if _, err := s.History(context.Background(), ""); !errors.Is(err, ErrEmptySessionID) {
		t.Errorf("History: want ErrEmptySessionID, got %v", err)
	}
	if err := s.AppendExchange(context.Background(), "", "q", "a"); !errors.Is(err, ErrEmptySessionID) {
		t.Errorf("AppendExchange: want ErrEmptySessionID, got %v", err)
	}
}

func Test_Store_InvalidRoleRejected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	ctx := context.Background()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureSession(ctx, tx, "s"); err != nil {
			return err
		}
		return insertMessage(ctx, tx, "s", Role("system"), "x")
	})
	if err == nil {
		t.Fatal("expected CHECK constraint failure for unknown role")
	}
	msgs, _ := s.History(context.Background(), "s")
	if len(msgs) != 0 {
		t.Errorf("failed append left %d messages", len(msgs))
	}
}

func Test_Store_ConcurrentAppends(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.AppendExchange(ctx, "busy", fmt.Sprintf("q%d", i), "a"); err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}()
	}
	wg.Wait()

	msgs, err := s.History(ctx, "busy")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 40 {
		t.Fatalf("want 40 messages, got %d", len(msgs))
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Role != RoleUser || msgs[i+1].Role != RoleAssistant {
			t.Fatalf("exchange at %d interleaved: %s then %s", i, msgs[i].Role, msgs[i+1].Role)
		}
	}
}

func Test_Store_FileBacked(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.AppendExchange(context.Background(), "s", "q", "a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	msgs, _ := reopened.History(context.Background(), "s")
	if len(msgs) != 2 {
		t.Errorf("want 2 messages after reopen, got %d", len(msgs))
	}
}

func Test_Store_Ping(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
