package counters

import (
	"context"
	"errors"
	"net/http"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/titan-stats/pkg/resilience"
)

// GuardedService fails fast with ErrUnavailable while its breaker is open
// instead of waiting on a backend that keeps failing.
type GuardedService struct {
	next    Service
	breaker *resilience.Breaker
}

func NewGuardedService(next Service, breaker *resilience.Breaker) *GuardedService {
	return &GuardedService{next: next, breaker: breaker}
}

func (g *GuardedService) GetCounterData(ctx context.Context, names []string, start, end *time.Time) (AggregateData, error) {
	var data AggregateData
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = g.next.GetCounterData(ctx, names, start, end)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, err.Error())
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
