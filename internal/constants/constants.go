package constants

import "time"

// Codeforces enforces a global request budget, so every outbound call shares
// the same minimum spacing regardless of endpoint.
const (
	RateLimitDelay     = 2 * time.Second
	APIRetries         = 3
	RetryBaseDelay     = 3 * time.Second
	RateLimitedWait    = 10 * time.Second
	RetryAfterBuffer   = 500 * time.Millisecond
	ExternalAPITimeout = 30 * time.Second
)

const (
	SubmissionPageSize = 200
	MaxDataAgeDays     = 365
	SyncCooldown       = 6 * time.Hour
)

const (
	InactivityThresholdDays = 7
	ReminderFloorDays       = 3
)

const (
	RecommendationWindowDays = 365
	WeakTagLimit             = 5
	CandidateSampleSize      = 200
	RecommendationLimit      = 10
	RatingBand               = 200
	RatingCeiling            = 3400
)

const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)
