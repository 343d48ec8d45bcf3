package crawlsim

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Scenario constants.
const (
	DefaultStops      = 3
	DefaultSettle     = 5 * time.Second
	PollInterval      = 20 * time.Millisecond
	ItemHeight        = 40
	ItemGap           = 8
	DiscoverHeadroom  = 2
	MaxErrorBodyBytes = 512
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
)
