package crawlsim

import "time"

// Config holds configuration for a simulation run
type Config struct {
	BaseURL    string        // Base URL of the service
	Planners   int           // Number of virtual planners
	Workers    int           // Number of concurrent workers
	Stops      int           // Venues each planner selects
	Timeout    time.Duration // HTTP request timeout
	Settle     time.Duration // How long to wait for an automatic route
	OutputFile string        // Output file for per-planner results
	LogFile    string        // Log file for simulation output
	Verbose    bool          // Enable verbose logging
}

// Result is the outcome of one virtual planner.
type Result struct {
	Planner   int    `json:"planner"`
	SessionID string `json:"session_id,omitempty"`
	Steps     int    `json:"steps"`
	Replays   int    `json:"replays"`
	Failed    string `json:"failed_step,omitempty"`
	Error     string `json:"error,omitempty"`
	Duration  string `json:"duration"`
}

// OK reports whether the planner completed every step.
func (r Result) OK() bool { return r.Failed == "" }

// Stats holds simulation statistics
type Stats struct {
	PlannersStarted   int
	PlannersSucceeded int
	PlannersFailed    int
	StepsCompleted    int
	Replays           int
	FailuresByStep    map[string]int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
