package raster

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPacer_SpacesWaits(t *testing.T) {
	t.Parallel()

	p := NewPacer(20*time.Millisecond, nil)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	// First wait is free, the next two are paced.
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Errorf("three waits took %v, want at least ~40ms", elapsed)
	}
}

func TestPacer_NoDelay(t *testing.T) {
	t.Parallel()

	p := NewPacer(0, nil)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("unpaced waits took %v", elapsed)
	}
}

func TestPacer_AbortInterruptsWait(t *testing.T) {
	t.Parallel()

	abort := newTestAbort()
	p := NewPacer(time.Hour, abort)
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		abort.Abort()
	}()

	done := make(chan error, 1)
	go func() { done <- p.Wait(context.Background()) }()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("Wait() error = %v, want ErrCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() not interrupted by abort")
	}
}

func TestPacer_ContextCancelled(t *testing.T) {
	t.Parallel()

	p := NewPacer(time.Hour, nil)
	_ = p.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx); !errors.Is(err, ErrCancelled) {
		t.Errorf("Wait() error = %v, want ErrCancelled", err)
	}
}
