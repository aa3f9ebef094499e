package service

import (
	"time"

	"k8s.io/utils/clock"

	"pve-cloner/internal/logger"
	"pve-cloner/internal/output"
)

const DefaultMaxAttempts = 3

// Retrier re-runs failed API calls with exponential backoff: 1s, 2s, 4s...
// Every error is considered transient; there is no jitter.
type Retrier struct {
	log         *logger.Logger
	sink        output.Sink
	clock       clock.Clock
	maxAttempts int
}

func NewRetrier(sink output.Sink, clk clock.Clock, maxAttempts int) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &Retrier{
		log:         logger.NewLogger("Retrier"),
		sink:        sink,
		clock:       clk,
		maxAttempts: maxAttempts,
	}
}

func (r *Retrier) Do(name string, op func() error) error {
	_, err := Call(r, name, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Call runs op until it succeeds or the attempts are used up, in which case
// the last error is returned unchanged.
func Call[T any](r *Retrier, name string, op func() (T, error)) (T, error) {
	var zero T
	var err error

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		var ret T
		ret, err = op()
		if err == nil {
			return ret, nil
		}

		r.log.Debug("%s attempt %d/%d failed: %v", name, attempt+1, r.maxAttempts, err)

		if attempt == r.maxAttempts-1 {
			break
		}

		wait := time.Duration(1<<attempt) * time.Second
		r.sink.Warn("API call failed, retrying in %d seconds... (Error: %v)", int(wait/time.Second), err)
		r.clock.Sleep(wait)
	}

	return zero, err
}
