package sched

import "testing"

func TestManualSchedulerTick(t *testing.T) {
	s := NewManual()

	fired := 0
	stop, err := s.Schedule("*/5 * * * *", func() { fired++ })
	if err != nil {
		t.Fatal(err)
	}

	s.Tick()
	s.Tick()
	if fired != 2 {
		t.Errorf("expected 2 firings, got %d", fired)
	}

	stop()
	s.Tick()
	if fired != 2 {
		t.Errorf("job fired after stop")
	}
}

func TestManualSchedulerIndependentJobs(t *testing.T) {
	s := NewManual()

	var a, b int
	stopA, _ := s.Schedule("* * * * *", func() { a++ })
	if _, err := s.Schedule("* * * * *", func() { b++ }); err != nil {
		t.Fatal(err)
	}

	s.Tick()
	stopA()
	s.Tick()

	if a != 1 || b != 2 {
		t.Errorf("got a=%d b=%d, want a=1 b=2", a, b)
	}
}

func TestCronSchedulerRejectsBadSpec(t *testing.T) {
	s := NewCron()
	defer s.Stop()

	if _, err := s.Schedule("not a cron spec", func() {}); err == nil {
		t.Fatal("expected error for invalid spec")
	}

	stop, err := s.Schedule("*/5 * * * *", func() {})
	if err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
	stop()
}
