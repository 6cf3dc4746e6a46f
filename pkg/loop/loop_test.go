package loop

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoopRunsCallbacksInOrder(t *testing.T) {
	l := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Do(ctx, func() {}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got %v, want 0..4 in order", got)
		}
	}
	if len(got) != 5 {
		t.Fatalf("got %d callbacks, want 5", len(got))
	}
}

func TestLoopAfterReschedules(t *testing.T) {
	l := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	ticks := make(chan int, 10)
	n := 0
	var tick func()
	tick = func() {
		n++
		ticks <- n
		if n < 3 {
			l.After(time.Millisecond, tick)
		}
	}
	l.After(time.Millisecond, tick)

	deadline := time.After(2 * time.Second)
	for want := 1; want <= 3; want++ {
		select {
		case got := <-ticks:
			if got != want {
				t.Fatalf("tick %d, want %d", got, want)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for tick %d", want)
		}
	}
}

func TestLoopStopsTimersAndRejectsWork(t *testing.T) {
	l := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	fired := make(chan struct{}, 1)
	l.After(50*time.Millisecond, func() { fired <- struct{}{} })
	cancel()
	<-l.Done()

	select {
	case <-fired:
		t.Fatal("timer fired after the loop stopped")
	case <-time.After(120 * time.Millisecond):
	}

	err := l.Do(context.Background(), func() {})
	if !errors.Is(err, ErrStopped) {
		t.Errorf("Do after stop = %v, want ErrStopped", err)
	}
}
