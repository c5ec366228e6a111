package reconcile

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/commerce_backend/workflow"
)

func TestEnvBoolDefault(t *testing.T) {
	const key = "RECONCILE_TEST_BOOL"

	cases := []struct {
		val  string
		def  bool
		want bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"gibberish", true, true},
	}
	for _, c := range cases {
		t.Setenv(key, c.val)
		if got := envBoolDefault(key, c.def); got != c.want {
			t.Errorf("envBoolDefault(%q, %v) = %v, want %v", c.val, c.def, got, c.want)
		}
	}
}

func TestPushStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 204},
		{workflow.ErrIdempotencyInProgress, 503},
		{fmt.Errorf("begin: %w", workflow.ErrIdempotencyInProgress), 503},
		{errors.New("gateway init failed"), 204},
	}
	for _, c := range cases {
		if got := pushStatusForError(c.err); got != c.want {
			t.Errorf("pushStatusForError(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	if formatTime(nil) != nil {
		t.Fatal("nil time must format to nil")
	}
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	got := formatTime(&at)
	if got == nil || *got != "2026-03-14T09:26:53Z" {
		t.Fatalf("formatTime = %v", got)
	}
}
