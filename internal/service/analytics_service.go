package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/helpdeskhq/helpdesk-service/internal/auth"
	"github.com/helpdeskhq/helpdesk-service/internal/config"
	"github.com/helpdeskhq/helpdesk-service/internal/domain"
	"github.com/helpdeskhq/helpdesk-service/internal/repository"
	apperrors "github.com/helpdeskhq/helpdesk-service/pkg/util/errorutil"
)

// AnalyticsService derives aggregate statistics from the ticket store and
// user directory. All computations are read-only and tolerate an empty
// data set. Reports are memoized in Redis for a short TTL.
type AnalyticsService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	categories repository.CategoryRepository
	policy     *auth.Policy
	cache      *redis.Client
	cacheTTL   time.Duration
	windowDays int
	logger     *zap.Logger
}

// AnalyticsDependencies bundles requirements for the analytics service.
type AnalyticsDependencies struct {
	TicketRepo   repository.TicketRepository
	UserRepo     repository.UserRepository
	CategoryRepo repository.CategoryRepository
	Policy       *auth.Policy
	Cache        *redis.Client
	Logger       *zap.Logger
}

// NewAnalyticsService builds the service.
func NewAnalyticsService(cfg config.AnalyticsConfig, deps AnalyticsDependencies) *AnalyticsService {
	windowDays := cfg.DefaultWindowDays
	if windowDays <= 0 {
		windowDays = 30
	}
	return &AnalyticsService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		categories: deps.CategoryRepo,
		policy:     deps.Policy,
		cache:      deps.Cache,
		cacheTTL:   cfg.CacheTTL(),
		windowDays: windowDays,
		logger:     deps.Logger,
	}
}

// Report builds the admin analytics view over the lookback window.
func (s *AnalyticsService) Report(ctx context.Context, actor *domain.User, windowDays int) (*domain.AnalyticsReport, error) {
	if !s.policy.CanViewAnalytics(actor) {
		return nil, apperrors.NewForbidden("admin role required")
	}
	// Zero means "use the configured default window".
	if windowDays < 0 || windowDays > 365 {
		return nil, apperrors.NewValidationError("days must be between 0 and 365", map[string]any{"days": windowDays})
	}
	if windowDays == 0 {
		windowDays = s.windowDays
	}

	if cached := s.cachedReport(ctx, windowDays); cached != nil {
		return cached, nil
	}

	since := time.Now().AddDate(0, 0, -windowDays)
	windowed, err := s.tickets.ListCreatedSince(ctx, since)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	// Reports cover deactivated staff too; their handled tickets are
	// still part of the record.
	staff, err := s.users.ListAllStaff(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}

	report := &domain.AnalyticsReport{
		WindowDays:         windowDays,
		GeneratedAt:        time.Now(),
		StatusDistribution: statusDistribution(windowed),
		CategoryStats:      categoryStats(windowed, categories),
		VolumeTrend:        volumeTrend(windowed),
		ResolutionTimes:    resolutionTimes(windowed),
	}

	performance := make([]domain.AgentPerformance, 0, len(staff))
	for _, agent := range staff {
		assigned, err := s.tickets.ListByAssignee(ctx, agent.ID)
		if err != nil {
			return nil, apperrors.NewPersistenceError(err)
		}
		performance = append(performance, agentPerformance(&agent, assigned))
	}
	report.AgentPerformance = performance

	s.storeReport(ctx, report)
	return report, nil
}

// CustomerDashboard summarizes the acting user's own tickets.
func (s *AnalyticsService) CustomerDashboard(ctx context.Context, actor *domain.User) (*domain.DashboardStats, error) {
	userFilter := repository.TicketFilter{UserID: &actor.ID}
	stats, err := s.countStatuses(ctx, userFilter)
	if err != nil {
		return nil, err
	}

	userFilter.Limit = 5
	recent, err := s.tickets.List(ctx, userFilter)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if recent == nil {
		recent = []domain.Ticket{}
	}
	stats.RecentTickets = recent
	return stats, nil
}

// StaffDashboard summarizes the whole store plus the open-workload
// priority breakdown.
func (s *AnalyticsService) StaffDashboard(ctx context.Context, actor *domain.User) (*domain.DashboardStats, error) {
	if !actor.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}

	stats, err := s.countStatuses(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, err
	}

	priorityStats, err := s.tickets.CountOpenByPriority(ctx)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if priorityStats == nil {
		priorityStats = []domain.PriorityCount{}
	}
	stats.PriorityStats = priorityStats

	recent, err := s.tickets.List(ctx, repository.TicketFilter{Limit: 5})
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	if recent == nil {
		recent = []domain.Ticket{}
	}
	stats.RecentTickets = recent
	return stats, nil
}

func (s *AnalyticsService) countStatuses(ctx context.Context, base repository.TicketFilter) (*domain.DashboardStats, error) {
	stats := &domain.DashboardStats{}

	total, err := s.tickets.Count(ctx, base)
	if err != nil {
		return nil, apperrors.NewPersistenceError(err)
	}
	stats.Total = total

	for _, entry := range []struct {
		status domain.TicketStatus
		target *int
	}{
		{domain.TicketStatusOpen, &stats.OpenCount},
		{domain.TicketStatusInProgress, &stats.InProgressCount},
		{domain.TicketStatusResolved, &stats.ResolvedCount},
	} {
		filter := base
		status := entry.status
		filter.Status = &status
		count, err := s.tickets.Count(ctx, filter)
		if err != nil {
			return nil, apperrors.NewPersistenceError(err)
		}
		*entry.target = count
	}
	return stats, nil
}

func statusDistribution(tickets []domain.Ticket) []domain.StatusCount {
	counts := map[domain.TicketStatus]int{}
	for _, t := range tickets {
		counts[t.Status]++
	}

	order := []domain.TicketStatus{
		domain.TicketStatusOpen,
		domain.TicketStatusInProgress,
		domain.TicketStatusResolved,
		domain.TicketStatusClosed,
	}
	result := make([]domain.StatusCount, 0, len(order))
	for _, status := range order {
		if counts[status] > 0 {
			result = append(result, domain.StatusCount{Status: status, Count: counts[status]})
		}
	}
	return result
}

func categoryStats(tickets []domain.Ticket, categories []domain.Category) []domain.CategoryCount {
	counts := map[int64]int{}
	for _, t := range tickets {
		counts[t.CategoryID]++
	}

	result := make([]domain.CategoryCount, 0, len(categories))
	for _, c := range categories {
		if counts[c.ID] > 0 {
			result = append(result, domain.CategoryCount{
				CategoryID:   c.ID,
				CategoryName: c.Name,
				Count:        counts[c.ID],
			})
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	return result
}

func volumeTrend(tickets []domain.Ticket) []domain.VolumePoint {
	counts := map[string]int{}
	for _, t := range tickets {
		counts[t.CreatedAt.Format("2006-01-02")]++
	}

	dates := make([]string, 0, len(counts))
	for date := range counts {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	result := make([]domain.VolumePoint, 0, len(dates))
	for _, date := range dates {
		result = append(result, domain.VolumePoint{Date: date, Count: counts[date]})
	}
	return result
}

func resolutionTimes(tickets []domain.Ticket) []domain.ResolutionTime {
	type bucket struct {
		totalHours float64
		count      int
	}
	buckets := map[domain.TicketPriority]*bucket{}
	for _, t := range tickets {
		if t.ResolvedAt == nil {
			continue
		}
		b, ok := buckets[t.Priority]
		if !ok {
			b = &bucket{}
			buckets[t.Priority] = b
		}
		b.totalHours += t.ResolvedAt.Sub(t.CreatedAt).Hours()
		b.count++
	}

	order := []domain.TicketPriority{
		domain.TicketPriorityLow,
		domain.TicketPriorityMedium,
		domain.TicketPriorityHigh,
		domain.TicketPriorityUrgent,
	}
	result := make([]domain.ResolutionTime, 0, len(order))
	for _, priority := range order {
		if b, ok := buckets[priority]; ok {
			result = append(result, domain.ResolutionTime{
				Priority: priority,
				AvgHours: b.totalHours / float64(b.count),
				Count:    b.count,
			})
		}
	}
	return result
}

func agentPerformance(agent *domain.User, assigned []domain.Ticket) domain.AgentPerformance {
	perf := domain.AgentPerformance{
		UserID:        agent.ID,
		FullName:      agent.FullName,
		TotalAssigned: len(assigned),
	}

	var totalHours float64
	var resolvedWithTime int
	for _, t := range assigned {
		switch t.Status {
		case domain.TicketStatusResolved:
			perf.Resolved++
		case domain.TicketStatusClosed:
			perf.Closed++
		}
		if t.ResolvedAt != nil {
			totalHours += t.ResolvedAt.Sub(t.CreatedAt).Hours()
			resolvedWithTime++
		}
	}
	if resolvedWithTime > 0 {
		avg := totalHours / float64(resolvedWithTime)
		perf.AvgResolutionHours = &avg
	}
	return perf
}

func (s *AnalyticsService) cachedReport(ctx context.Context, windowDays int) *domain.AnalyticsReport {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, reportCacheKey(windowDays)).Bytes()
	if err != nil {
		return nil
	}
	var report domain.AnalyticsReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil
	}
	return &report
}

func (s *AnalyticsService) storeReport(ctx context.Context, report *domain.AnalyticsReport) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, reportCacheKey(report.WindowDays), raw, s.cacheTTL).Err(); err != nil && s.logger != nil {
		s.logger.Debug("analytics cache write failed", zap.Error(err))
	}
}

func reportCacheKey(windowDays int) string {
	return fmt.Sprintf("analytics:report:%dd", windowDays)
}
