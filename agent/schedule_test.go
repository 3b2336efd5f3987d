package agent

import (
	"testing"
	"time"
)

func TestComputeNextWakeDuration(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := ComputeNextWake("15m", base)
	if err != nil {
		t.Fatalf("ComputeNextWake failed: %v", err)
	}
	// ConstantDelaySchedule rounds to seconds
	if got := next.Sub(base); got != 15*time.Minute {
		t.Errorf("expected 15m delay, got %v", got)
	}
}

func TestComputeNextWakeCron(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 7, 30, 0, time.UTC)

	// Five-field cron: every 15 minutes
	next, err := ComputeNextWake("*/15 * * * *", base)
	if err != nil {
		t.Fatalf("ComputeNextWake failed: %v", err)
	}
	want := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}

	// Six-field cron with seconds
	next, err = ComputeNextWake("0 */30 * * * *", base)
	if err != nil {
		t.Fatalf("ComputeNextWake with seconds failed: %v", err)
	}
	want = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestParseScheduleInvalid(t *testing.T) {
	for _, schedule := range []string{"", "not a schedule", "99x"} {
		if _, err := ParseSchedule(schedule); err == nil {
			t.Errorf("ParseSchedule(%q): expected error", schedule)
		}
	}
}
