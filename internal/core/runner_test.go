package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestRunner(store *fakeStore, opts RunnerOptions) *Runner {
	return NewRunner(&fakeOpener{store: store}, NewAttributeUpdater(testCatalog(), true), DefaultConfig("unused"), opts)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRunner_StartAndWait(t *testing.T) {
	store := newFakeStore()
	r := newTestRunner(store, RunnerOptions{})

	id, err := r.Start(context.Background(), writeInput(t, "sku;name-en_US\nA1;Widget\n"))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	out, err := r.Wait(waitCtx(t), id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if out.State != StateDone || out.Count(CounterCreated) != 1 {
		t.Errorf("outcome = %+v", out)
	}

	st, err := r.Status(id)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateDone || st.Outcome == nil || st.FinishedAt.IsZero() {
		t.Errorf("status = %+v", st)
	}
	if !store.closed {
		t.Error("session was not closed")
	}
}

func TestRunner_ConfigurationError(t *testing.T) {
	r := newTestRunner(newFakeStore(), RunnerOptions{})
	_, err := r.Start(context.Background(), "  ")
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("Start = %v, want *ConfigurationError", err)
	}
	if len(r.List()) != 0 {
		t.Error("rejected run was registered")
	}
	if r.Limiter().Active != 0 {
		t.Error("rejected run holds a limiter slot")
	}
}

func TestRunner_OpenFailure(t *testing.T) {
	r := NewRunner(&fakeOpener{openErr: errors.New("connection refused")}, &recordingUpdater{}, DefaultConfig("x"), RunnerOptions{})

	id, err := r.Start(context.Background(), writeInput(t, "sku\nA1\n"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := r.Wait(waitCtx(t), id)
	if !IsFatal(err) {
		t.Errorf("Wait error = %v, want fatal", err)
	}
	if out.State != StateFailed || out.Fatal == "" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestRunner_Cancel(t *testing.T) {
	store := newFakeStore()
	started := make(chan struct{})
	release := make(chan struct{})
	store.onFind = func(ctx context.Context) {
		select {
		case <-started:
		default:
			close(started)
		}
		<-release
	}

	r := newTestRunner(store, RunnerOptions{})
	id, err := r.Start(context.Background(), writeInput(t, "sku\nA1\nA2\nA3\n"))
	if err != nil {
		t.Fatal(err)
	}

	<-started
	if err := r.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	close(release)

	out, err := r.Wait(waitCtx(t), id)
	if !errors.Is(err, ErrRunCancelled) {
		t.Fatalf("Wait error = %v, want ErrRunCancelled", err)
	}
	if out.State != StateCancelled {
		t.Errorf("State = %s, want cancelled", out.State)
	}
	if _, _, flushes := store.counts(); flushes != 1 {
		t.Errorf("flushes = %d, want 1", flushes)
	}
}

func TestRunner_NotFound(t *testing.T) {
	r := newTestRunner(newFakeStore(), RunnerOptions{})
	if _, err := r.Status("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Status = %v, want ErrRunNotFound", err)
	}
	if err := r.Cancel("nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Cancel = %v, want ErrRunNotFound", err)
	}
	if _, err := r.Wait(context.Background(), "nope"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Wait = %v, want ErrRunNotFound", err)
	}
}

func TestRunner_ListAndRetention(t *testing.T) {
	r := newTestRunner(newFakeStore(), RunnerOptions{RetainFor: 200 * time.Millisecond})

	path := writeInput(t, "sku\nA1\n")
	first, err := r.Start(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Wait(waitCtx(t), first); err != nil {
		t.Fatal(err)
	}
	second, err := r.Start(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.WaitForRuns(waitCtx(t)); err != nil {
		t.Fatalf("WaitForRuns: %v", err)
	}
	list := r.List()
	if len(list) != 2 || list[0].ID != first || list[1].ID != second {
		t.Fatalf("List = %+v", list)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(r.List()) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("finished runs were not forgotten")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunner_TooManyRuns(t *testing.T) {
	store := newFakeStore()
	release := make(chan struct{})
	store.onFind = func(context.Context) { <-release }

	r := newTestRunner(store, RunnerOptions{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond})
	path := writeInput(t, "sku\nA1\n")

	if _, err := r.Start(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Start(context.Background(), path); !errors.Is(err, ErrTooManyRuns) {
		t.Errorf("second Start = %v, want ErrTooManyRuns", err)
	}

	close(release)
	if err := r.WaitForRuns(waitCtx(t)); err != nil {
		t.Fatal(err)
	}
	if r.Limiter().Active != 0 {
		t.Error("slot not released")
	}
}
