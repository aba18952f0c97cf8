package dto

// DailySummaryResponse is the fixed-shape dashboard card payload for one day.
type DailySummaryResponse struct {
	Date       string             `json:"date"`
	Classes    ClassesSection     `json:"classes"`
	Attendance AttendanceSection  `json:"attendance"`
	Fees       FeesSection        `json:"fees"`
	Tests      []UpcomingTest     `json:"upcomingTests"`
}

// ClassesSection compares scheduled sessions against marked ones.
type ClassesSection struct {
	Scheduled int `json:"scheduled"`
	Marked    int `json:"marked"`
}

// AttendanceSection carries present/absent counts and the integer rate.
type AttendanceSection struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Rate    int `json:"rate"`
}

// FeesSection summarises the fee position for the day.
type FeesSection struct {
	CollectedToday float64 `json:"collectedToday"`
	DueSoonCount   int     `json:"dueSoonCount"`
	DueSoonAmount  float64 `json:"dueSoonAmount"`
	OverdueCount   int     `json:"overdueCount"`
	OverdueAmount  float64 `json:"overdueAmount"`
}

// UpcomingTest is a test scheduled within the leading window.
type UpcomingTest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SubjectID string `json:"subjectId"`
	Date      string `json:"date"`
}
