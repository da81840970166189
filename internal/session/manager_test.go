package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestCreateAndHistory(t *testing.T) {
	m := NewManager(2)

	id := m.Create()
	if id == "" {
		t.Fatal("expected non-empty session id")
	}
	if got := m.History(id); got != "" {
		t.Errorf("expected empty history for new session, got %q", got)
	}

	m.AddExchange(id, "What is MCP?", "A protocol for tool use.")
	want := "User: What is MCP?\nAssistant: A protocol for tool use."
	if got := m.History(id); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestHistoryUnknownSession(t *testing.T) {
	m := NewManager(2)
	if got := m.History("nope"); got != "" {
		t.Errorf("expected empty history for unknown id, got %q", got)
	}
}

func TestHistoryTrimmed(t *testing.T) {
	m := NewManager(2)
	id := m.Create()

	for i := 1; i <= 5; i++ {
		m.AddExchange(id, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	history := m.History(id)
	if strings.Contains(history, "q3") {
		t.Errorf("expected old exchanges to be dropped, got %q", history)
	}
	if !strings.Contains(history, "q4") || !strings.Contains(history, "q5") {
		t.Errorf("expected the two newest exchanges, got %q", history)
	}
	if strings.Count(history, "User:") != 2 {
		t.Errorf("expected exactly 2 retained exchanges, got %q", history)
	}
}

func TestAddExchangeCreatesUnknownSession(t *testing.T) {
	m := NewManager(2)

	m.AddExchange("stale-id", "hello", "hi")
	if got := m.History("stale-id"); got == "" {
		t.Error("expected exchange recorded under the stale id")
	}
}

func TestDelete(t *testing.T) {
	m := NewManager(2)
	id := m.Create()
	m.AddExchange(id, "q", "a")

	m.Delete(id)
	if got := m.History(id); got != "" {
		t.Errorf("expected empty history after delete, got %q", got)
	}
	if m.Count() != 0 {
		t.Errorf("expected no sessions, got %d", m.Count())
	}

	// Deleting again is a no-op.
	m.Delete(id)
}

func TestConcurrentAccess(t *testing.T) {
	m := NewManager(2)
	id := m.Create()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			m.AddExchange(id, fmt.Sprintf("q%d", n), fmt.Sprintf("a%d", n))
		}(i)
		go func() {
			defer wg.Done()
			_ = m.History(id)
		}()
	}
	wg.Wait()

	if got := strings.Count(m.History(id), "User:"); got != 2 {
		t.Errorf("expected history capped at 2 exchanges, got %d", got)
	}
}
