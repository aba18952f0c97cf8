package models

import "time"

// Challenge is a time-boxed activity students can complete for points.
type Challenge struct {
	ID          string     `db:"id" json:"id"`
	TuitionID   string     `db:"tuition_id" json:"tuition_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	Points      int        `db:"points" json:"points"`
	StartsAt    *time.Time `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt      *time.Time `db:"ends_at" json:"ends_at,omitempty"`
	Active      bool       `db:"active" json:"active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ChallengeCompletion records a student finishing a challenge.
type ChallengeCompletion struct {
	ID          string    `db:"id" json:"id"`
	TuitionID   string    `db:"tuition_id" json:"tuition_id"`
	ChallengeID string    `db:"challenge_id" json:"challenge_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
}

// Badge is an award definition.
type Badge struct {
	ID        string    `db:"id" json:"id"`
	TuitionID string    `db:"tuition_id" json:"tuition_id"`
	Name      string    `db:"name" json:"name"`
	Icon      string    `db:"icon" json:"icon"`
	Criteria  string    `db:"criteria" json:"criteria"`
	Points    int       `db:"points" json:"points"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StudentBadge links a badge award to a student.
type StudentBadge struct {
	ID        string    `db:"id" json:"id"`
	TuitionID string    `db:"tuition_id" json:"tuition_id"`
	BadgeID   string    `db:"badge_id" json:"badge_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	AwardedAt time.Time `db:"awarded_at" json:"awarded_at"`
	AwardedBy *string   `db:"awarded_by" json:"awarded_by,omitempty"`
}

// StreakInfo carries the computed attendance streaks for a student.
type StreakInfo struct {
	StudentID     string `json:"student_id"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
}

// LeaderboardEntry is one ranked row of the gamified leaderboard.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	StudentID     string `json:"student_id"`
	StudentName   string `json:"student_name"`
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	BadgeCount    int    `json:"badge_count"`
	Points        int    `json:"points"`
}
