package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/kargo/repository"
	"github.com/amirphl/kargo/utils"
)

// SequenceGenerator issues human-readable numbers of the form PREFIX-YYYYMMDD-NNNNN.
// Next must run inside the transaction that persists the numbered entity.
type SequenceGenerator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

type SequenceGeneratorImpl struct {
	counterRepo repository.SequenceCounterRepository
	now         func() time.Time
}

func NewSequenceGenerator(counterRepo repository.SequenceCounterRepository) SequenceGenerator {
	return &SequenceGeneratorImpl{
		counterRepo: counterRepo,
		now:         utils.UTCNow,
	}
}

func (g *SequenceGeneratorImpl) Next(ctx context.Context, prefix string) (string, error) {
	day := g.now()
	value, err := g.counterRepo.Next(ctx, fmt.Sprintf("%s-%s", prefix, utils.DayStamp(day)))
	if err != nil {
		return "", NewBusinessError("SEQUENCE_FAILED", "failed to allocate sequence number", err)
	}
	return FormatSequenceNumber(prefix, day, value)
}

// FormatSequenceNumber renders value as the NNNNN suffix of the day's sequence
func FormatSequenceNumber(prefix string, day time.Time, value int64) (string, error) {
	if value < 1 || value > utils.MaxSequenceValue {
		return "", NewBusinessErrorf("SEQUENCE_EXHAUSTED", "sequence %s-%s overflowed at %d", ErrSequenceExhausted, prefix, utils.DayStamp(day), value)
	}
	return fmt.Sprintf("%s-%s-%05d", prefix, utils.DayStamp(day), value), nil
}
