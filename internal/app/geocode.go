package service

import (
	"context"
	"strings"
	"time"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/okian/crawlplan/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// sharedGeocoder collapses concurrent lookups of the same address into one
// outbound call. The shared call is detached from the first caller's
// cancellation and bounded by timeout instead.
type sharedGeocoder struct {
	next    provider.Geocoder
	timeout time.Duration
	group   singleflight.Group
}

func newSharedGeocoder(next provider.Geocoder, timeout time.Duration) *sharedGeocoder {
	return &sharedGeocoder{next: next, timeout: timeout}
}

func (g *sharedGeocoder) Resolve(ctx context.Context, address string) (venue.Coordinate, error) {
	key := strings.ToLower(strings.Join(strings.Fields(address), " "))
	ch := g.group.DoChan(key, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		return g.next.Resolve(cctx, address)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.RecordGeocodeCollapsed()
		}
		if res.Err != nil {
			return venue.Coordinate{}, res.Err
		}
		return res.Val.(venue.Coordinate), nil
	case <-ctx.Done():
		return venue.Coordinate{}, ctx.Err()
	}
}
