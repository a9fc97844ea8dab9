package rates

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/afritokeni/platform/internal/logger"
	"github.com/afritokeni/platform/pkg/errs"
)

type fakeSource struct {
	calls int
	price decimal.Decimal
	err   error
}

func (f *fakeSource) Fetch(ctx context.Context, pair string) (decimal.Decimal, error) {
	f.calls++
	return f.price, f.err
}

func testLogger() *logger.Logger {
	return logger.NewLogger("error")
}

func TestGetQuoteFetchesOnceThenCaches(t *testing.T) {
	src := &fakeSource{price: decimal.NewFromFloat(45000.50)}
	svc := NewServiceWithSource(src, time.Minute, testLogger())

	q1, err := svc.GetQuote(context.Background(), "BTC/UGX", 1000)
	assert.NoError(t, err)
	assert.True(t, q1.Price.Equal(decimal.NewFromFloat(45000.50)))
	assert.EqualValues(t, 1000, q1.FetchedAt)

	q2, err := svc.GetQuote(context.Background(), "BTC/UGX", 2000)
	assert.NoError(t, err)
	assert.EqualValues(t, 1000, q2.FetchedAt) // still the cached fetch time
	assert.Equal(t, 1, src.calls)             // source hit only once
}

func TestGetQuoteRejectsNonPositivePrice(t *testing.T) {
	src := &fakeSource{price: decimal.Zero}
	svc := NewServiceWithSource(src, time.Minute, testLogger())

	_, err := svc.GetQuote(context.Background(), "BTC/UGX", 1000)
	assert.Error(t, err)
	assert.Equal(t, errs.RateUnavailable, errs.KindOf(err))
}

func TestGetQuotePropagatesSourceError(t *testing.T) {
	src := &fakeSource{err: errs.New(errs.RateUnavailable, "oracle down")}
	svc := NewServiceWithSource(src, time.Minute, testLogger())

	_, err := svc.GetQuote(context.Background(), "BTC/UGX", 1000)
	assert.Error(t, err)
	assert.Equal(t, errs.RateUnavailable, errs.KindOf(err))
}

func TestGetQuoteExpiresAfterTTL(t *testing.T) {
	src := &fakeSource{price: decimal.NewFromInt(100)}
	svc := NewServiceWithSource(src, time.Millisecond, testLogger())

	_, err := svc.GetQuote(context.Background(), "CKBTC/CKUSDC", 1000)
	assert.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = svc.GetQuote(context.Background(), "CKBTC/CKUSDC", 2000)
	assert.NoError(t, err)
	assert.Equal(t, 2, src.calls) // cache expired, source hit again
}
