package businessflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/kargo/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	values map[string]int64
	err    error
}

func (f *fakeCounter) Next(_ context.Context, name string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.values[name]++
	return f.values[name], nil
}

func TestFormatSequenceNumber(t *testing.T) {
	day := time.Date(2025, 3, 7, 23, 59, 0, 0, time.UTC)

	tests := []struct {
		name   string
		prefix string
		value  int64
		want   string
		err    bool
	}{
		{"first of the day", utils.QuoteNumberPrefix, 1, "QT-20250307-00001", false},
		{"padded", utils.TrackingNumberPrefix, 42, "TRK-20250307-00042", false},
		{"last value", utils.PickupNumberPrefix, utils.MaxSequenceValue, "PU-20250307-99999", false},
		{"overflow", utils.PurchaseNumberPrefix, utils.MaxSequenceValue + 1, "", true},
		{"zero", utils.QuoteNumberPrefix, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatSequenceNumber(tt.prefix, day, tt.value)
			if tt.err {
				assert.True(t, IsSequenceExhausted(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatSequenceNumberUsesUTCDay(t *testing.T) {
	dakarLate := time.Date(2025, 3, 7, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	got, err := FormatSequenceNumber("QT", dakarLate, 3)
	require.NoError(t, err)
	assert.Equal(t, "QT-20250308-00003", got)
}

func TestSequenceGeneratorCountsPerPrefixAndDay(t *testing.T) {
	counter := &fakeCounter{values: map[string]int64{}}
	day := time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)
	gen := &SequenceGeneratorImpl{counterRepo: counter, now: func() time.Time { return day }}
	ctx := context.Background()

	first, err := gen.Next(ctx, "QT")
	require.NoError(t, err)
	second, err := gen.Next(ctx, "QT")
	require.NoError(t, err)
	other, err := gen.Next(ctx, "TRK")
	require.NoError(t, err)

	assert.Equal(t, "QT-20250102-00001", first)
	assert.Equal(t, "QT-20250102-00002", second)
	assert.Equal(t, "TRK-20250102-00001", other)

	day = day.Add(24 * time.Hour)
	next, err := gen.Next(ctx, "QT")
	require.NoError(t, err)
	assert.Equal(t, "QT-20250103-00001", next)
}

func TestSequenceGeneratorPropagatesCounterFailure(t *testing.T) {
	gen := &SequenceGeneratorImpl{
		counterRepo: &fakeCounter{err: errors.New("connection reset")},
		now:         utils.UTCNow,
	}
	_, err := gen.Next(context.Background(), "PU")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}
