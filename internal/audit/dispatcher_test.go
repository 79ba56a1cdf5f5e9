package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type blockingRepository struct {
	*InMemoryRepository
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (r *blockingRepository) Record(ctx context.Context, event Event) error {
	r.once.Do(func() { close(r.started) })
	<-r.release
	return r.InMemoryRepository.Record(ctx, event)
}

type failingRepository struct {
	*InMemoryRepository
}

func (failingRepository) Record(context.Context, Event) error {
	return errors.New("database unavailable")
}

func TestDispatcherDeliversEventsOnClose(t *testing.T) {
	repo := NewInMemoryRepository(0)
	d := NewDispatcher(repo, 8, nil)

	for i := 0; i < 5; i++ {
		d.Emit(NewEvent(KindVerified, "user-1", "", "/"))
	}
	d.Close()

	events, _ := repo.ListBySubject(context.Background(), "user-1", 10)
	if len(events) != 5 {
		t.Fatalf("expected 5 delivered events, got %d", len(events))
	}
	if d.Dropped() != 0 {
		t.Fatalf("expected no drops, got %d", d.Dropped())
	}
}

func TestDispatcherDropsWhenBufferFull(t *testing.T) {
	repo := &blockingRepository{
		InMemoryRepository: NewInMemoryRepository(0),
		release:            make(chan struct{}),
		started:            make(chan struct{}),
	}
	d := NewDispatcher(repo, 1, nil)

	d.Emit(NewEvent(KindDenied, "user-1", "invalid_token", "/a"))
	select {
	case <-repo.started:
	case <-time.After(time.Second):
		t.Fatal("dispatcher never picked up the first event")
	}

	// The worker is blocked on the first event; one more fits in the buffer.
	d.Emit(NewEvent(KindDenied, "user-1", "invalid_token", "/b"))
	d.Emit(NewEvent(KindDenied, "user-1", "invalid_token", "/c"))
	d.Emit(NewEvent(KindDenied, "user-1", "invalid_token", "/d"))

	if d.Dropped() != 2 {
		t.Fatalf("expected 2 dropped events, got %d", d.Dropped())
	}

	close(repo.release)
	d.Close()

	events, _ := repo.ListBySubject(context.Background(), "user-1", 10)
	if len(events) != 2 {
		t.Fatalf("expected 2 delivered events, got %d", len(events))
	}
}

func TestDispatcherSurvivesStoreErrors(t *testing.T) {
	d := NewDispatcher(failingRepository{NewInMemoryRepository(0)}, 4, nil)
	d.Emit(NewEvent(KindDegraded, "", "network_error", "/"))
	d.Close()
}

func TestDispatcherIgnoresEmitAfterClose(t *testing.T) {
	repo := NewInMemoryRepository(0)
	d := NewDispatcher(repo, 4, nil)
	d.Close()
	d.Close()

	d.Emit(NewEvent(KindVerified, "user-1", "", "/"))
	events, _ := repo.ListBySubject(context.Background(), "user-1", 10)
	if len(events) != 0 {
		t.Fatalf("expected no events after close, got %d", len(events))
	}
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *Dispatcher
	d.Emit(NewEvent(KindVerified, "user-1", "", "/"))
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("expected nil dispatcher to report no drops")
	}
}
