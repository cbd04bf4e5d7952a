package domain

import (
	"time"
)

// AcceptedVerdict is the verdict Codeforces reports for a passing submission.
const AcceptedVerdict = "OK"

type Student struct {
	ID                 string
	Name               string
	Email              string
	PhoneNumber        string
	Handle             string
	Rating             int
	MaxRating          int
	Rank               string
	LastSubmissionTime time.Time
	LastContestTime    time.Time
	LastDataSync       time.Time
	SyncStatus         SyncStatus
	AutoEmailEnabled   bool
	ReminderCount      int
	LastReminderSent   time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Submission struct {
	ID            string
	StudentID     string
	SubmissionID  int64
	ProblemID     string // "<contestId>-<index>"
	ProblemIndex  string
	ProblemName   string
	ProblemRating int
	Verdict       string
	Solved        bool
	Tags          []string
	SubmittedAt   time.Time
	CreatedAt     time.Time
}

type ContestRecord struct {
	ID            string
	StudentID     string
	ContestID     int64
	ContestName   string
	OldRating     int
	NewRating     int
	RatingChange  int
	Rank          int
	ContestTime   time.Time
	TotalProblems int
	UnsolvedCount int
	CreatedAt     time.Time
}

type Problem struct {
	ID        string // "<contestId>-<index>"
	ContestID int64
	Index     string
	Name      string
	Rating    int
	Tags      []string
	UpdatedAt time.Time
}

type RecommendedProblem struct {
	StudentID     string    `json:"studentId"`
	Position      int       `json:"position"`
	ProblemID     string    `json:"problemId"`
	ProblemName   string    `json:"problemName"`
	ProblemIndex  string    `json:"problemIndex"`
	ProblemRating int       `json:"problemRating"`
	Tags          []string  `json:"tags"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Settings struct {
	CronSchedule    string
	ScheduleInput   string
	AutoSyncEnabled bool
	LastSyncTime    time.Time
	UpdatedAt       time.Time
}

// SyncResult is the outcome of a single-profile sync.
type SyncResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type SyncFailure struct {
	StudentID string `json:"studentId"`
	Reason    string `json:"reason"`
}

// BatchResult aggregates a full sequential batch sync.
type BatchResult struct {
	Total     int           `json:"totalStudents"`
	Succeeded int           `json:"successCount"`
	Failed    int           `json:"errorCount"`
	Failures  []SyncFailure `json:"failedIds"`
}
