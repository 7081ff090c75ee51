// Package scheduler runs periodic background jobs next to the HTTP server
package scheduler

import (
	"context"
	"log"
	"time"
)

// QuoteExpirer is the slice of the quote flow the scheduler needs
type QuoteExpirer interface {
	ExpireOverdueQuotes(ctx context.Context, limit int) (int, error)
}

// QuoteExpiryScheduler periodically expires SENT quotes whose validity window has passed
type QuoteExpiryScheduler struct {
	expirer   QuoteExpirer
	logger    *log.Logger
	interval  time.Duration
	batchSize int
}

func NewQuoteExpiryScheduler(expirer QuoteExpirer, logger *log.Logger, interval time.Duration, batchSize int) *QuoteExpiryScheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = log.Default()
	}
	return &QuoteExpiryScheduler{
		expirer:   expirer,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start launches the scheduler loop in a background goroutine and returns a stop function
func (s *QuoteExpiryScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

// runOnce drains overdue quotes batch by batch until a short batch or an error
func (s *QuoteExpiryScheduler) runOnce(ctx context.Context) int {
	total := 0
	for ctx.Err() == nil {
		n, err := s.expirer.ExpireOverdueQuotes(ctx, s.batchSize)
		total += n
		if err != nil {
			s.logger.Printf("scheduler: expire overdue quotes failed after %d: %v", total, err)
			break
		}
		if n < s.batchSize {
			break
		}
	}
	if total > 0 {
		s.logger.Printf("scheduler: expired %d overdue quotes", total)
	}
	return total
}
