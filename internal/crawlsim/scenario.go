package crawlsim

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/okian/crawlplan/internal/adapters/http/api"
	"github.com/okian/crawlplan/internal/domain/reorder"
	"github.com/okian/crawlplan/internal/planner"
)

type toggleResponse struct {
	Change string       `json:"change"`
	View   planner.View `json:"view"`
}

type routeResponse struct {
	Outcome string       `json:"outcome"`
	View    planner.View `json:"view"`
}

// scenario walks one planner through a full evening.
type scenario struct {
	client *HTTPClient
	base   string
	stops  int
	settle time.Duration

	id      string
	chosen  []string
	replays int
	deleted bool
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

// runScenario plays every step in order and stops at the first failure.
func runScenario(ctx context.Context, client *HTTPClient, config *Config, n int) Result {
	start := time.Now()
	s := &scenario{
		client: client,
		base:   config.BaseURL,
		stops:  config.Stops,
		settle: config.Settle,
	}

	res := Result{Planner: n}
	for _, st := range s.steps() {
		if err := st.run(ctx); err != nil {
			res.Failed = st.name
			res.Error = err.Error()
			break
		}
		res.Steps++
	}
	if s.id != "" && !s.deleted {
		// Leave nothing behind on the service when a step failed.
		_, _ = s.client.Do(context.WithoutCancel(ctx), http.MethodDelete, s.url(""), nil)
	}

	res.SessionID = s.id
	res.Replays = s.replays
	res.Duration = time.Since(start).String()
	return res
}

func (s *scenario) steps() []step {
	return []step{
		{"create", s.create},
		{"locate", s.locate},
		{"discover", s.discover},
		{"select", s.selectStops},
		{"route", s.route},
		{"replay", s.replay},
		{"reorder", s.reorder},
		{"drag", s.drag},
		{"delete", s.delete},
	}
}

func (s *scenario) url(path string) string {
	return s.base + "/sessions/" + s.id + path
}

func (s *scenario) create(ctx context.Context) error {
	resp, err := s.client.Do(ctx, http.MethodPost, s.base+"/sessions", nil)
	if err != nil {
		return err
	}
	var v planner.View
	if err := resp.expect(http.StatusCreated, &v); err != nil {
		return err
	}
	if v.SessionID == "" {
		return fmt.Errorf("session id missing")
	}
	s.id = v.SessionID
	return nil
}

// locate reports a device without a position fix, which must fall back to
// the default origin instead of failing.
func (s *scenario) locate(ctx context.Context) error {
	resp, err := s.client.Do(ctx, http.MethodPost, s.url("/location"), map[string]string{"source": "gps"})
	if err != nil {
		return err
	}
	var v planner.View
	if err := resp.expect(http.StatusOK, &v); err != nil {
		return err
	}
	if v.Origin.Source != planner.SourceDefault {
		return fmt.Errorf("expected default origin, got %q", v.Origin.Source)
	}
	return nil
}

func (s *scenario) discover(ctx context.Context) error {
	body := map[string]any{"limit": s.stops + DiscoverHeadroom}
	resp, err := s.client.Do(ctx, http.MethodPost, s.url("/discover"), body)
	if err != nil {
		return err
	}
	var v planner.View
	if err := resp.expect(http.StatusOK, &v); err != nil {
		return err
	}
	if len(v.Venues) < s.stops {
		return fmt.Errorf("discovered %d venues, need %d", len(v.Venues), s.stops)
	}
	for _, ven := range v.Venues[:s.stops] {
		s.chosen = append(s.chosen, ven.ID)
	}
	return nil
}

func (s *scenario) selectStops(ctx context.Context) error {
	var last planner.View
	for _, id := range s.chosen {
		resp, err := s.client.Do(ctx, http.MethodPost, s.url("/selection/toggle"),
			map[string]string{"venue_id": id},
			api.IdempotencyHeader, uuid.NewString())
		if err != nil {
			return err
		}
		var tr toggleResponse
		if err := resp.expect(http.StatusOK, &tr); err != nil {
			return err
		}
		if tr.Change != "added" {
			return fmt.Errorf("toggle of %s: expected added, got %q", id, tr.Change)
		}
		last = tr.View
	}
	if !slices.Equal(last.SelectionIDs(), s.chosen) {
		return fmt.Errorf("selection %v does not keep toggle order %v", last.SelectionIDs(), s.chosen)
	}
	if !last.CanRequestRoute {
		return fmt.Errorf("route not requestable with %d stops", len(s.chosen))
	}
	return nil
}

// requestRoute posts a route request under key and expects it applied.
func (s *scenario) requestRoute(ctx context.Context, key string) (*Response, error) {
	resp, err := s.client.Do(ctx, http.MethodPost, s.url("/route"), nil, api.IdempotencyHeader, key)
	if err != nil {
		return nil, err
	}
	var rr routeResponse
	if err := resp.expect(http.StatusOK, &rr); err != nil {
		return nil, err
	}
	if rr.Outcome != "applied" {
		return nil, fmt.Errorf("expected applied route, got %q", rr.Outcome)
	}
	r := rr.View.Route
	if !r.Present || r.Stale || r.Pending {
		return nil, fmt.Errorf("route not current: present=%t stale=%t pending=%t", r.Present, r.Stale, r.Pending)
	}
	if !slices.Equal(r.Basis, rr.View.SelectionIDs()) {
		return nil, fmt.Errorf("route basis %v differs from selection %v", r.Basis, rr.View.SelectionIDs())
	}
	if len(r.Legs) != len(r.Basis)-1 {
		return nil, fmt.Errorf("expected %d legs, got %d", len(r.Basis)-1, len(r.Legs))
	}
	return resp, nil
}

const routeKey = "route-first"

func (s *scenario) route(ctx context.Context) error {
	_, err := s.requestRoute(ctx, routeKey)
	return err
}

// replay retries the first route request with the same key. The service
// must answer from its idempotency record.
func (s *scenario) replay(ctx context.Context) error {
	first, err := s.client.Do(ctx, http.MethodPost, s.url("/route"), nil, api.IdempotencyHeader, routeKey)
	if err != nil {
		return err
	}
	if err := first.expect(http.StatusOK, nil); err != nil {
		return err
	}
	if first.Header.Get(api.ReplayedHeader) != "true" {
		return fmt.Errorf("retry was not replayed")
	}
	again, err := s.client.Do(ctx, http.MethodPost, s.url("/route"), nil, api.IdempotencyHeader, routeKey)
	if err != nil {
		return err
	}
	if !bytes.Equal(first.Body, again.Body) {
		return fmt.Errorf("replayed bodies differ")
	}
	s.replays += 2
	return nil
}

// reorder reverses the stops. The route must turn stale until it is
// requested again.
func (s *scenario) reorder(ctx context.Context) error {
	reversed := slices.Clone(s.chosen)
	slices.Reverse(reversed)

	resp, err := s.client.Do(ctx, http.MethodPut, s.url("/selection"), map[string][]string{"order": reversed})
	if err != nil {
		return err
	}
	var v planner.View
	if err := resp.expect(http.StatusOK, &v); err != nil {
		return err
	}
	if !v.Route.Stale {
		return fmt.Errorf("route should be stale after reorder")
	}
	s.chosen = reversed

	_, err = s.requestRoute(ctx, uuid.NewString())
	return err
}

// drag moves the last stop to the top. The route was current when the drag
// started, so the service recomputes it on its own.
func (s *scenario) drag(ctx context.Context) error {
	dragged := s.chosen[len(s.chosen)-1]
	others := s.chosen[:len(s.chosen)-1]

	resp, err := s.client.Do(ctx, http.MethodPost, s.url("/drag/start"), map[string]string{"venue_id": dragged})
	if err != nil {
		return err
	}
	if err := resp.expect(http.StatusOK, nil); err != nil {
		return err
	}

	move := map[string]any{
		"y":     0,
		"boxes": reorder.StackLayout(others, ItemHeight, ItemGap),
	}
	resp, err = s.client.Do(ctx, http.MethodPost, s.url("/drag/move"), move)
	if err != nil {
		return err
	}
	var v planner.View
	if err := resp.expect(http.StatusOK, &v); err != nil {
		return err
	}
	want := append([]string{dragged}, others...)
	if !slices.Equal(v.Drag.Items, want) {
		return fmt.Errorf("drag preview %v, want %v", v.Drag.Items, want)
	}

	resp, err = s.client.Do(ctx, http.MethodPost, s.url("/drag/end"), nil, api.IdempotencyHeader, uuid.NewString())
	if err != nil {
		return err
	}
	if err := resp.expect(http.StatusOK, &v); err != nil {
		return err
	}
	if !slices.Equal(v.SelectionIDs(), want) {
		return fmt.Errorf("committed order %v, want %v", v.SelectionIDs(), want)
	}
	s.chosen = want

	return s.awaitRoute(ctx)
}

// awaitRoute polls the session until the automatic route lands.
func (s *scenario) awaitRoute(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.settle)
	defer cancel()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		resp, err := s.client.Do(ctx, http.MethodGet, s.url(""), nil)
		if err != nil {
			return err
		}
		var v planner.View
		if err := resp.expect(http.StatusOK, &v); err != nil {
			return err
		}
		if !v.Route.Pending && !v.Route.Stale && slices.Equal(v.Route.Basis, s.chosen) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("route did not settle: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *scenario) delete(ctx context.Context) error {
	resp, err := s.client.Do(ctx, http.MethodDelete, s.url(""), nil)
	if err != nil {
		return err
	}
	if err := resp.expect(http.StatusNoContent, nil); err != nil {
		return err
	}
	s.deleted = true

	resp, err = s.client.Do(ctx, http.MethodGet, s.url(""), nil)
	if err != nil {
		return err
	}
	return resp.expect(http.StatusNotFound, nil)
}
