package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNormalizeCron(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		want    string
		wantErr bool
	}{
		{"five fields gains seconds", "30 7 * * *", "0 30 7 * * *", false},
		{"six fields unchanged", "0 30 7 * * *", "0 30 7 * * *", false},
		{"seven fields unchanged", "0 30 7 * * * 2026", "0 30 7 * * * 2026", false},
		{"whitespace collapsed", " 30  7 * * * ", "0 30 7 * * *", false},
		{"too few fields", "30 7 *", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCron(tt.expr)
			if tt.wantErr {
				if !errors.Is(err, ErrBadCronExpression) {
					t.Errorf("error = %v, want %v", err, ErrBadCronExpression)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeCron: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeCron(%q) = %q, want %q", tt.expr, got, tt.want)
			}
		})
	}
}

func TestScheduleAndCancel(t *testing.T) {
	s := New(time.UTC, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	if err := s.Schedule("wake-up", "30 7 * * *", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if names := s.Names(); len(names) != 1 || names[0] != "wake-up" {
		t.Errorf("Names = %v", names)
	}

	// Same name replaces, does not duplicate.
	if err := s.Schedule("wake-up", "45 7 * * *", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if names := s.Names(); len(names) != 1 {
		t.Errorf("Names after reschedule = %v", names)
	}

	if err := s.Cancel("wake-up"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := s.Cancel("wake-up"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("second Cancel error = %v, want %v", err, ErrJobNotFound)
	}
}

func TestScheduleRejectsBadCron(t *testing.T) {
	s := New(time.UTC, nil)

	err := s.Schedule("bad", "not a cron", func(context.Context) error { return nil })
	if !errors.Is(err, ErrBadCronExpression) {
		t.Errorf("error = %v, want %v", err, ErrBadCronExpression)
	}
}

func TestScheduledJobRuns(t *testing.T) {
	s := New(time.UTC, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	fired := make(chan struct{}, 1)
	// Every second so the test observes a firing quickly.
	if err := s.Schedule("tick", "* * * * * *", func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not fire")
	}
}

func TestRescheduleDoesNotDuplicateFirings(t *testing.T) {
	s := New(time.UTC, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	var fired atomic.Int32
	tick := func(context.Context) error {
		fired.Add(1)
		return nil
	}

	// Registering the same name twice must leave one job, not two.
	if err := s.Schedule("tick", "* * * * * *", tick); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if err := s.Schedule("tick", "* * * * * *", tick); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if names := s.Names(); len(names) != 1 {
		t.Fatalf("Names = %v, want one entry", names)
	}

	// A per-second cron observed across ~2.5s fires 2-3 times for a
	// single registration; a duplicate would double that.
	time.Sleep(2500 * time.Millisecond)
	count := fired.Load()
	if count < 1 || count > 3 {
		t.Errorf("firings = %d, want 1-3 from a single registration", count)
	}

	s.CancelAll()
	base := fired.Load()
	time.Sleep(1500 * time.Millisecond)
	if got := fired.Load(); got != base {
		t.Errorf("job fired %d times after CancelAll", got-base)
	}
}

func TestCancelAll(t *testing.T) {
	s := New(time.UTC, nil)

	for _, name := range []string{"a", "b", "c"} {
		if err := s.Schedule(name, "0 0 * * *", func(context.Context) error { return nil }); err != nil {
			t.Fatalf("Schedule %s: %v", name, err)
		}
	}
	s.CancelAll()
	if names := s.Names(); len(names) != 0 {
		t.Errorf("Names after CancelAll = %v", names)
	}
}
