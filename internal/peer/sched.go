package peer

import "time"

// schedule is the deferred-continuation queue for one peer: callbacks keyed
// by a session-clock deadline, fired from the peer's own loop. Replaces
// coroutine-style sleeps so the loop keeps processing messages while a
// countdown or rest delay is pending, and so a phase change or disconnect
// can cancel what has not fired yet.
type task struct {
	tag string
	at  time.Duration
	fn  func()
}

type schedule struct {
	tasks []task
}

// arm schedules fn at the given session time, replacing any pending task
// with the same tag.
func (s *schedule) arm(tag string, at time.Duration, fn func()) {
	s.cancel(tag)
	s.tasks = append(s.tasks, task{tag: tag, at: at, fn: fn})
}

func (s *schedule) cancel(tag string) {
	for i, t := range s.tasks {
		if t.tag == tag {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return
		}
	}
}

func (s *schedule) clear() {
	s.tasks = nil
}

func (s *schedule) pending(tag string) bool {
	for _, t := range s.tasks {
		if t.tag == tag {
			return true
		}
	}
	return false
}

// fire runs every task whose deadline has passed, earliest first. Tasks are
// removed before running so a callback can safely re-arm its own tag.
func (s *schedule) fire(now time.Duration) {
	for {
		idx := -1
		for i, t := range s.tasks {
			if t.at > now {
				continue
			}
			if idx == -1 || t.at < s.tasks[idx].at {
				idx = i
			}
		}
		if idx == -1 {
			return
		}
		t := s.tasks[idx]
		s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
		t.fn()
	}
}
