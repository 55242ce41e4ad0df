package schedule

import (
	"context"
	"sync"
	"testing"
	"time"
)

// TestOrdering pins Testable Property #4: given inbound items
// [N1(serial), N2(parallel), N3(serial)], completions observe
// N1.end <= N2.start and N2.end <= N3.start.
func TestOrdering(t *testing.T) {
	s := New(Config{})
	defer s.Stop()

	var mu sync.Mutex
	var events []string
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}

	var n1Done, n2Started, n2Done sync.WaitGroup
	n1Done.Add(1)
	n2Started.Add(1)
	n2Done.Add(1)

	if err := s.Submit(Item{Type: Serial, Run: func(ctx context.Context) {
		record("n1.start")
		time.Sleep(20 * time.Millisecond)
		record("n1.end")
		n1Done.Done()
	}}); err != nil {
		t.Fatal(err)
	}

	if err := s.Submit(Item{Type: Parallel, Run: func(ctx context.Context) {
		record("n2.start")
		n2Started.Done()
		time.Sleep(20 * time.Millisecond)
		record("n2.end")
		n2Done.Done()
	}}); err != nil {
		t.Fatal(err)
	}

	if err := s.Submit(Item{Type: Serial, Run: func(ctx context.Context) {
		record("n3.start")
	}}); err != nil {
		t.Fatal(err)
	}

	n1Done.Wait()
	n2Started.Wait()
	n2Done.Wait()

	// Give the worker a moment to pick up n3 after n2 drains.
	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := len(events)
		mu.Unlock()
		if n >= 5 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for n3 to start")
		case <-time.After(time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	index := func(e string) int {
		for i, ev := range events {
			if ev == e {
				return i
			}
		}
		t.Fatalf("event %q never recorded; events = %v", e, events)
		return -1
	}

	n1End := index("n1.end")
	n2Start := index("n2.start")
	n2End := index("n2.end")
	n3Start := index("n3.start")

	if n1End > n2Start {
		t.Errorf("n1.end (%d) must precede n2.start (%d); events = %v", n1End, n2Start, events)
	}
	if n2End > n3Start {
		t.Errorf("n2.end (%d) must precede n3.start (%d); events = %v", n2End, n3Start, events)
	}
}

func TestParallelItemsOverlap(t *testing.T) {
	s := New(Config{})
	defer s.Stop()

	var wg sync.WaitGroup
	wg.Add(2)
	bothRunning := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	running := 0

	run := func(ctx context.Context) {
		mu.Lock()
		running++
		n := running
		mu.Unlock()
		if n == 2 {
			once.Do(func() { close(bothRunning) })
		}
		time.Sleep(50 * time.Millisecond)
		wg.Done()
	}

	if err := s.Submit(Item{Type: Parallel, Run: run}); err != nil {
		t.Fatal(err)
	}
	if err := s.Submit(Item{Type: Parallel, Run: run}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-bothRunning:
	case <-time.After(time.Second):
		t.Fatal("parallel items never overlapped")
	}
	wg.Wait()
}

func TestMaxParallelBound(t *testing.T) {
	s := New(Config{MaxParallel: 1})
	defer s.Stop()

	var mu sync.Mutex
	maxObserved := 0
	current := 0
	var wg sync.WaitGroup
	wg.Add(3)

	run := func(ctx context.Context) {
		mu.Lock()
		current++
		if current > maxObserved {
			maxObserved = current
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		current--
		mu.Unlock()
		wg.Done()
	}

	for i := 0; i < 3; i++ {
		if err := s.Submit(Item{Type: Parallel, Run: run}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if maxObserved > 1 {
		t.Fatalf("maxObserved = %d, want <= 1 with MaxParallel=1", maxObserved)
	}
}

func TestSubmitAfterStopFails(t *testing.T) {
	s := New(Config{})
	s.Stop()
	if err := s.Submit(Item{Type: Serial, Run: func(ctx context.Context) {}}); err != ErrStopped {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestStopWaitsForInFlightParallel(t *testing.T) {
	s := New(Config{})
	started := make(chan struct{})
	finished := make(chan struct{})

	if err := s.Submit(Item{Type: Parallel, Run: func(ctx context.Context) {
		close(started)
		time.Sleep(30 * time.Millisecond)
		close(finished)
	}}); err != nil {
		t.Fatal(err)
	}

	<-started
	if !s.Stop() {
		t.Fatal("Stop() = false, want true (should drain within default grace)")
	}
	select {
	case <-finished:
	default:
		t.Fatal("Stop returned before in-flight parallel item finished")
	}
}
