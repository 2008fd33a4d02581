package jobs

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Sweepable is anything holding lazily-expired entries that a periodic pass
// can reclaim early.
type Sweepable interface {
	Sweep() int
}

type target struct {
	name string
	s    Sweepable
}

// SweepJob periodically reclaims expired correlation and cache entries.
// Pure memory hygiene: lazy expiry on access is what guarantees correctness,
// with or without this job running.
type SweepJob struct {
	targets  []target
	interval time.Duration
	done     chan struct{}
}

func NewSweepJob(interval time.Duration) *SweepJob {
	return &SweepJob{
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *SweepJob) Add(name string, s Sweepable) {
	j.targets = append(j.targets, target{name: name, s: s})
}

func (j *SweepJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("sweep job started")
}

func (j *SweepJob) Stop() {
	close(j.done)
	log.Info().Msg("sweep job stopped")
}

func (j *SweepJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *SweepJob) sweep() {
	for _, t := range j.targets {
		if count := t.s.Sweep(); count > 0 {
			log.Info().Int("count", count).Msgf("swept expired %s entries", t.name)
		}
	}
}
