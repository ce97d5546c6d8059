package generate

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultProgressEvery = 1000

// progress logs loop progress at most every N items or every 10 seconds.
type progress struct {
	log       *zap.Logger
	sometimes *rate.Sometimes
	total     int
}

func newProgress(component string, total, every int) *progress {
	if every <= 0 {
		every = defaultProgressEvery
	}
	return &progress{
		log:       zap.L().With(zap.String("component", component)),
		sometimes: &rate.Sometimes{Every: every, Interval: 10 * time.Second},
		total:     total,
	}
}

func (p *progress) tick(done int) {
	if done <= 1 {
		return
	}
	p.sometimes.Do(func() {
		p.log.Info("progress", zap.Int("done", done), zap.Int("total", p.total))
	})
}

func (p *progress) done(records int) {
	p.log.Info("generated", zap.Int("records", records))
}
