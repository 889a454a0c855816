package domain

import "time"

// StatusCount is one row of the status distribution.
type StatusCount struct {
	Status TicketStatus `json:"status"`
	Count  int          `json:"count"`
}

// CategoryCount is one row of the category distribution.
type CategoryCount struct {
	CategoryID   int64  `json:"category_id"`
	CategoryName string `json:"category_name"`
	Count        int    `json:"count"`
}

// PriorityCount is one row of the open-workload priority breakdown.
type PriorityCount struct {
	Priority TicketPriority `json:"priority"`
	Count    int            `json:"count"`
}

// ResolutionTime holds the average hours from creation to resolution for
// resolved tickets of one priority.
type ResolutionTime struct {
	Priority TicketPriority `json:"priority"`
	AvgHours float64        `json:"avg_hours"`
	Count    int            `json:"count"`
}

// VolumePoint is one day of the ticket volume trend.
type VolumePoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AgentPerformance summarizes one staff member's workload. Staff with no
// assigned tickets appear with zero counts and a nil average.
type AgentPerformance struct {
	UserID             int64    `json:"user_id"`
	FullName           string   `json:"full_name"`
	TotalAssigned      int      `json:"total_assigned"`
	Resolved           int      `json:"resolved"`
	Closed             int      `json:"closed"`
	AvgResolutionHours *float64 `json:"avg_resolution_hours"`
}

// AnalyticsReport aggregates everything the admin analytics view shows.
type AnalyticsReport struct {
	WindowDays         int                `json:"window_days"`
	GeneratedAt        time.Time          `json:"generated_at"`
	StatusDistribution []StatusCount      `json:"status_distribution"`
	CategoryStats      []CategoryCount    `json:"category_stats"`
	VolumeTrend        []VolumePoint      `json:"volume_trend"`
	ResolutionTimes    []ResolutionTime   `json:"resolution_times"`
	AgentPerformance   []AgentPerformance `json:"agent_performance"`
}

// DashboardStats backs the landing dashboards; for customers the counts
// are scoped to their own tickets.
type DashboardStats struct {
	Total           int             `json:"total"`
	OpenCount       int             `json:"open_count"`
	InProgressCount int             `json:"in_progress_count"`
	ResolvedCount   int             `json:"resolved_count"`
	PriorityStats   []PriorityCount `json:"priority_stats,omitempty"`
	RecentTickets   []Ticket        `json:"recent_tickets"`
}
