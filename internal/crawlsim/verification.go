package crawlsim

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/crawlplan/pkg/logger"
)

// maxReportedFailures bounds how many failing planners are logged one by one.
const maxReportedFailures = 10

// verifyResults groups failures by step and fails the run when any planner
// did not finish or two planners ended up sharing a session.
func verifyResults(ctx context.Context, config *Config, results []Result, stats *Stats) error {
	log := logger.Get().Named("crawlsim")
	log.Info(ctx, "verifying results")

	if len(results) == 0 {
		return fmt.Errorf("no results to verify")
	}

	sessions := make(map[string]int, len(results))
	var failures []Result
	for _, r := range results {
		if !r.OK() {
			stats.FailuresByStep[r.Failed]++
			failures = append(failures, r)
		}
		if r.SessionID == "" {
			continue
		}
		if other, dup := sessions[r.SessionID]; dup {
			return fmt.Errorf("planners %d and %d shared session %s", other, r.Planner, r.SessionID)
		}
		sessions[r.SessionID] = r.Planner
	}

	if len(failures) == 0 {
		log.Info(ctx, "every planner completed", logger.Int("planners", len(results)))
		return nil
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].Planner < failures[j].Planner })
	shown := failures
	if !config.Verbose && len(shown) > maxReportedFailures {
		shown = shown[:maxReportedFailures]
	}
	for _, r := range shown {
		log.Warn(ctx, "planner failed",
			logger.Int("planner", r.Planner),
			logger.String("session", r.SessionID),
			logger.String("step", r.Failed),
			logger.String("error", r.Error))
	}
	return fmt.Errorf("%d of %d planners failed", len(failures), len(results))
}
