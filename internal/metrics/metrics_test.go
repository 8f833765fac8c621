package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePass(t *testing.T) {
	before := testutil.CollectAndCount(PassDuration)

	ObservePass("test_pass", time.Now(), nil)
	ObservePass("test_pass", time.Now(), errors.New("boom"))

	after := testutil.CollectAndCount(PassDuration)
	if after < before+2 {
		t.Fatalf("expected two new series, got %d -> %d", before, after)
	}
}

func TestCountersIncrement(t *testing.T) {
	AchievementUnlocks.WithLabelValues("FIRST_VIBE").Inc()
	if got := testutil.ToFloat64(AchievementUnlocks.WithLabelValues("FIRST_VIBE")); got < 1 {
		t.Fatalf("unlock counter = %v, want >= 1", got)
	}

	LockContention.WithLabelValues("ranking").Inc()
	if got := testutil.ToFloat64(LockContention.WithLabelValues("ranking")); got < 1 {
		t.Fatalf("contention counter = %v, want >= 1", got)
	}
}
