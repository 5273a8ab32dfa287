package domain

import "testing"

func TestSessionPinAndSolved(t *testing.T) {
	t.Parallel()

	s := Session{Levels: []Level{{Code: "aaaa"}, {Code: "bbbb"}, {Code: "cccc"}}}

	if !s.Pin(2, "bbbb") {
		t.Fatal("expected matching guess to succeed")
	}
	if s.Pin(3, "BBBB") {
		t.Fatal("expected guesses to be case-sensitive")
	}
	if got := s.Solved(); got != 1 {
		t.Errorf("expected 1 solved level, got %d", got)
	}

	s.Pin(2, "nope")
	if got := s.Solved(); got != 0 {
		t.Errorf("expected wrong guess to clear the flag, got %d solved", got)
	}

	codes := s.Codes()
	if len(codes) != 3 || codes[0] != "aaaa" || codes[2] != "cccc" {
		t.Errorf("unexpected codes %v", codes)
	}
}

func TestCounterKey(t *testing.T) {
	t.Parallel()

	k := CounterKey{Metric: MetricAttempts, Level: 7}
	if k.String() != "attempts:7" {
		t.Errorf("unexpected key string %q", k.String())
	}
	if err := k.Validate(); err != nil {
		t.Errorf("expected valid key, got %v", err)
	}
	for _, bad := range []CounterKey{{Metric: "views", Level: 1}, {Metric: MetricSuccesses, Level: 0}, {Metric: MetricSuccesses, Level: 11}} {
		if bad.Validate() == nil {
			t.Errorf("expected %v to be invalid", bad)
		}
	}
}
