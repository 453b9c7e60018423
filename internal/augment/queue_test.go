package augment

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iconidentify/albumproxy/internal/domain"
)

type stubProcessor struct {
	mu      sync.Mutex
	calls   []string
	running int32
	peak    int32
	block   chan struct{}
	fn      func(token, itemID string) (*domain.AugmentationRecord, error)
}

func (p *stubProcessor) Process(ctx context.Context, token, itemID, mediaURL string) (*domain.AugmentationRecord, error) {
	cur := atomic.AddInt32(&p.running, 1)
	defer atomic.AddInt32(&p.running, -1)
	for {
		peak := atomic.LoadInt32(&p.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&p.peak, peak, cur) {
			break
		}
	}

	p.mu.Lock()
	p.calls = append(p.calls, itemID)
	p.mu.Unlock()

	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.fn != nil {
		return p.fn(token, itemID)
	}
	return &domain.AugmentationRecord{Token: token, ItemID: itemID}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestQueue_ProcessesInOrder(t *testing.T) {
	proc := &stubProcessor{}
	q := NewQueue(1, proc, testLogger())
	defer q.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var futures []*Future
	for _, id := range []string{"a", "b", "c"} {
		f, err := q.Enqueue(Job{Token: "tok", ItemID: id, MediaURL: "https://cdn/" + id})
		if err != nil {
			t.Fatalf("Enqueue(%q): %v", id, err)
		}
		futures = append(futures, f)
	}

	for i, f := range futures {
		rec, err := f.Wait(ctx)
		if err != nil {
			t.Fatalf("job %d: %v", i, err)
		}
		if rec == nil {
			t.Fatalf("job %d: nil record", i)
		}
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if proc.calls[i] != id {
			t.Errorf("call order %v, want %v", proc.calls, want)
			break
		}
	}
}

func TestQueue_ConcurrencyLimit(t *testing.T) {
	proc := &stubProcessor{block: make(chan struct{})}
	q := NewQueue(1, proc, testLogger())
	defer q.Stop()

	var futures []*Future
	for _, id := range []string{"w", "x", "y", "z"} {
		f, err := q.Enqueue(Job{Token: "tok", ItemID: id})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		futures = append(futures, f)
	}

	time.Sleep(50 * time.Millisecond)
	if got := q.Running(); got != 1 {
		t.Errorf("Running() = %d, want 1 while jobs are blocked", got)
	}

	close(proc.block)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}

	if peak := atomic.LoadInt32(&proc.peak); peak != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak)
	}
}

func TestQueue_DrainsAfterFailure(t *testing.T) {
	wantErr := errors.New("download failed")
	proc := &stubProcessor{
		fn: func(token, itemID string) (*domain.AugmentationRecord, error) {
			if itemID == "bad" {
				return nil, wantErr
			}
			return &domain.AugmentationRecord{Token: token, ItemID: itemID}, nil
		},
	}
	q := NewQueue(1, proc, testLogger())
	defer q.Stop()

	fBad, _ := q.Enqueue(Job{Token: "tok", ItemID: "bad"})
	fGood, _ := q.Enqueue(Job{Token: "tok", ItemID: "good"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := fBad.Wait(ctx); !errors.Is(err, wantErr) {
		t.Errorf("bad job error = %v, want %v", err, wantErr)
	}
	rec, err := fGood.Wait(ctx)
	if err != nil {
		t.Fatalf("good job after failure: %v", err)
	}
	if rec.ItemID != "good" {
		t.Errorf("ItemID = %q, want %q", rec.ItemID, "good")
	}
}

func TestQueue_CoalescesDuplicateJobs(t *testing.T) {
	proc := &stubProcessor{block: make(chan struct{})}
	q := NewQueue(1, proc, testLogger())
	defer q.Stop()

	f1, err := q.Enqueue(Job{Token: "tok", ItemID: "dup"})
	if err != nil {
		t.Fatal(err)
	}
	f2, err := q.Enqueue(Job{Token: "tok", ItemID: "dup"})
	if err != nil {
		t.Fatal(err)
	}
	if f1 != f2 {
		t.Error("duplicate enqueue should return the existing future")
	}

	close(proc.block)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := f1.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	proc.mu.Lock()
	calls := len(proc.calls)
	proc.mu.Unlock()
	if calls != 1 {
		t.Errorf("processor ran %d times, want 1", calls)
	}
}

func TestQueue_StopRejectsNewJobs(t *testing.T) {
	proc := &stubProcessor{}
	q := NewQueue(1, proc, testLogger())
	q.Stop()

	if _, err := q.Enqueue(Job{Token: "tok", ItemID: "late"}); !errors.Is(err, domain.ErrQueueClosed) {
		t.Errorf("Enqueue after Stop = %v, want ErrQueueClosed", err)
	}
}

func TestQueue_StopResolvesPending(t *testing.T) {
	proc := &stubProcessor{block: make(chan struct{})}
	q := NewQueue(1, proc, testLogger())

	fRunning, _ := q.Enqueue(Job{Token: "tok", ItemID: "running"})
	fPending, _ := q.Enqueue(Job{Token: "tok", ItemID: "pending"})

	time.Sleep(50 * time.Millisecond)
	q.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := fPending.Wait(ctx); !errors.Is(err, domain.ErrQueueClosed) {
		t.Errorf("pending job error = %v, want ErrQueueClosed", err)
	}
	// The running job was cancelled via the queue context.
	if _, err := fRunning.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("running job error = %v, want context.Canceled", err)
	}
}
