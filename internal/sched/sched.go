// Package sched abstracts the periodic refresh timer behind an interface so
// the sync loop can run on virtual time in tests.
package sched

import (
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs fn on a cron-style schedule. The returned stop func cancels
// that one job.
type Scheduler interface {
	Schedule(spec string, fn func()) (stop func(), err error)
}

// Cron is the production Scheduler backed by robfig/cron.
type Cron struct {
	c    *cron.Cron
	once sync.Once
}

func NewCron() *Cron {
	return &Cron{c: cron.New()}
}

func (s *Cron) Schedule(spec string, fn func()) (func(), error) {
	id, err := s.c.AddFunc(spec, fn)
	if err != nil {
		return nil, err
	}
	s.once.Do(s.c.Start)
	return func() { s.c.Remove(id) }, nil
}

// Stop halts the underlying cron runner; scheduled jobs that already fired
// keep running to completion.
func (s *Cron) Stop() {
	s.c.Stop()
}

// Manual is a Scheduler for tests: jobs fire only when Tick is called.
type Manual struct {
	mu   sync.Mutex
	jobs map[int]func()
	next int
}

func NewManual() *Manual {
	return &Manual{jobs: make(map[int]func())}
}

func (s *Manual) Schedule(_ string, fn func()) (func(), error) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.jobs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
	}, nil
}

// Tick fires every registered job once, as if the schedule elapsed.
func (s *Manual) Tick() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.jobs))
	for _, fn := range s.jobs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
