package peer

import (
	"testing"
	"time"
)

func TestScheduleFiresDueTasksInOrder(t *testing.T) {
	var got []string
	s := &schedule{}
	s.arm("b", 2*time.Second, func() { got = append(got, "b") })
	s.arm("a", 1*time.Second, func() { got = append(got, "a") })
	s.arm("c", 5*time.Second, func() { got = append(got, "c") })

	s.fire(3 * time.Second)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("fired %v", got)
	}
	if !s.pending("c") {
		t.Fatalf("future task lost")
	}

	s.fire(10 * time.Second)
	if len(got) != 3 || got[2] != "c" {
		t.Fatalf("fired %v", got)
	}
}

func TestScheduleArmReplacesTag(t *testing.T) {
	fired := 0
	s := &schedule{}
	s.arm("countdown", time.Second, func() { fired++ })
	s.arm("countdown", 2*time.Second, func() { fired++ })

	s.fire(time.Second)
	if fired != 0 {
		t.Fatalf("replaced task fired")
	}
	s.fire(2 * time.Second)
	if fired != 1 {
		t.Fatalf("fired %d times", fired)
	}
}

func TestScheduleCancel(t *testing.T) {
	fired := false
	s := &schedule{}
	s.arm("rest", time.Second, func() { fired = true })
	s.cancel("rest")
	s.fire(time.Minute)
	if fired {
		t.Fatalf("cancelled task fired")
	}
}

func TestScheduleCallbackMayRearm(t *testing.T) {
	count := 0
	s := &schedule{}
	var tick func()
	tick = func() {
		count++
		if count < 3 {
			s.arm("tick", time.Duration(count)*time.Second, tick)
		}
	}
	s.arm("tick", 0, tick)
	s.fire(time.Minute)
	if count != 3 {
		t.Fatalf("count = %d", count)
	}
}
