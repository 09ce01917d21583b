package logger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type slowErr struct{}

func (slowErr) Error() string { return "slow" }
func (slowErr) Timeout() bool { return true }

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{context.DeadlineExceeded, "timeout"},
		{fmt.Errorf("wrap: %w", slowErr{}), "timeout"},
		{fmt.Errorf("wrap: %w", context.Canceled), "cancelled"},
		{errors.New("boom"), "fail"},
	}
	for _, tc := range cases {
		if got := Status(tc.err); got != tc.want {
			t.Errorf("Status(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestRoundMSAndSummarize(t *testing.T) {
	if got := RoundMS(1499 * time.Microsecond); got != time.Millisecond {
		t.Fatalf("RoundMS = %s", got)
	}
	preview, truncated := SummarizeStrings([]string{"a", "b", "c"}, 2)
	if !truncated || preview == "" {
		t.Fatalf("preview=%q truncated=%v", preview, truncated)
	}
}
