// README: Concurrency tests for booking transitions (run with -race).
package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"mechanico/internal/types"
)

// gatedStore holds the first two reads until both callers have loaded the
// booking, so both attempts start from the same version.
type gatedStore struct {
	*MemoryStore
	reads atomic.Int32
	gate  sync.WaitGroup
}

func newGatedStore() *gatedStore {
	g := &gatedStore{MemoryStore: NewMemoryStore()}
	g.gate.Add(2)
	return g
}

func (g *gatedStore) Get(ctx context.Context, id types.ID) (*Booking, error) {
	b, err := g.MemoryStore.Get(ctx, id)
	if g.reads.Add(1) <= 2 {
		g.gate.Done()
		g.gate.Wait()
	}
	return b, err
}

func TestConcurrentConfirmVsCancel(t *testing.T) {
	ctx := context.Background()
	gated := newGatedStore()
	svc, _, _ := newServiceOver(t, gated, gated.MemoryStore)
	b := mustCreate(t, svc)

	type result struct {
		booking *Booking
		err     error
	}
	results := make(chan result, 2)
	var wg sync.WaitGroup
	for _, cmd := range []TransitionCommand{
		{BookingID: b.ID, Actor: prov, Target: StatusConfirmed},
		{BookingID: b.ID, Actor: customer, Target: StatusCancelled},
	} {
		wg.Add(1)
		go func(cmd TransitionCommand) {
			defer wg.Done()
			got, err := svc.Transition(ctx, cmd)
			results <- result{got, err}
		}(cmd)
	}
	wg.Wait()
	close(results)

	var winner, loser *result
	for r := range results {
		r := r
		switch {
		case r.err == nil:
			if winner != nil {
				t.Fatalf("both transitions succeeded")
			}
			winner = &r
		case errors.Is(r.err, ErrConflict):
			loser = &r
		default:
			t.Fatalf("unexpected error: %v", r.err)
		}
	}
	if winner == nil || loser == nil {
		t.Fatalf("expected one winner and one conflict")
	}

	final, err := gated.MemoryStore.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != winner.booking.Status || final.StatusVersion != 1 {
		t.Fatalf("final %s v%d does not match winner %s", final.Status, final.StatusVersion, winner.booking.Status)
	}
	if loser.booking == nil || loser.booking.Status != final.Status {
		t.Fatalf("loser should see the committed state, got %+v", loser.booking)
	}
	if n := len(gated.MemoryStore.Events(b.ID)); n != 2 {
		t.Fatalf("expected creation plus one transition event, got %d", n)
	}
}

func TestConcurrentConfirmSameBooking(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)
	b := mustCreate(t, svc)

	const attempts = 20
	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		successes atomic.Int32
	)
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Transition(ctx, TransitionCommand{BookingID: b.ID, Actor: prov, Target: StatusConfirmed})
			if err == nil {
				successes.Add(1)
				return
			}
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	if successes.Load() != 1 {
		t.Fatalf("expected exactly 1 success, got %d", successes.Load())
	}
	for err := range errs {
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	final, _ := store.Get(ctx, b.ID)
	if final.Status != StatusConfirmed || final.StatusVersion != 1 {
		t.Fatalf("expected CONFIRMED v1, got %s v%d", final.Status, final.StatusVersion)
	}
}
