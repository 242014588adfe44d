package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/carebook/internal/persistence"
	"github.com/example/carebook/internal/scheduler"
)

// storedPrecision is the resolution activity windows keep in the store.
const storedPrecision = time.Second

// ActivityStore captures the catalog persistence operations.
type ActivityStore interface {
	CreateActivity(ctx context.Context, activity persistence.Activity) error
	GetActivity(ctx context.Context, id string) (persistence.Activity, error)
	ListActivities(ctx context.Context) ([]persistence.ActivityOccupancy, error)
	CountBookings(ctx context.Context, activityID string) (int, error)
	CountActivities(ctx context.Context) (int, error)
}

// ActivityCache holds immutable activity records. Occupancy is never cached.
type ActivityCache interface {
	GetActivity(ctx context.Context, id string) (Activity, bool, error)
	SetActivity(ctx context.Context, activity Activity) error
}

// CatalogService stores activities and answers occupancy queries.
type CatalogService struct {
	activities  ActivityStore
	cache       ActivityCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewCatalogService constructs a catalog service with the provided dependencies.
func NewCatalogService(activities ActivityStore, idGenerator func() string, now func() time.Time) *CatalogService {
	return NewCatalogServiceWithLogger(activities, nil, idGenerator, now, nil)
}

// NewCatalogServiceWithLogger constructs a catalog service with an optional
// cache and a specified logger.
func NewCatalogServiceWithLogger(activities ActivityStore, cache ActivityCache, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CatalogService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CatalogService{
		activities:  activities,
		cache:       cache,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *CatalogService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "CatalogService", operation, attrs...)
}

// CreateActivity validates input and persists a new activity for administrators.
func (s *CatalogService) CreateActivity(ctx context.Context, params CreateActivityParams) (activity Activity, err error) {
	if s == nil {
		err = fmt.Errorf("CatalogService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateActivity", "principal", params.Principal.Handle)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to create activity", err)
			return
		}
		logger.With("activity_id", activity.ID).InfoContext(ctx, "activity created")
	}()

	if !params.Principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	input := params.Input
	window := scheduler.Window{Start: input.Start, End: input.End}.Truncate(storedPrecision)
	input.Start, input.End = window.Start, window.End
	if err = validateActivityInput(input); err != nil {
		return
	}

	activity = Activity{
		ID:          s.idGenerator(),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Start:       input.Start,
		End:         input.End,
		Capacity:    input.Capacity,
		CreatedBy:   params.Principal.Handle,
		CreatedAt:   s.now(),
	}
	if err = s.activities.CreateActivity(ctx, fromActivity(activity)); err != nil {
		err = mapCatalogRepoError(err)
		return
	}
	return
}

// SeedActivities creates inputs as system activities only while the catalog
// is empty. It returns how many activities were created.
func (s *CatalogService) SeedActivities(ctx context.Context, inputs []ActivityInput) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("CatalogService is nil")
	}

	count, err := s.activities.CountActivities(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.loggerWith(ctx, "SeedActivities").DebugContext(ctx, "catalog not empty, skipping seed", "existing", count)
		return 0, nil
	}

	for i, input := range inputs {
		if _, err := s.CreateActivity(ctx, CreateActivityParams{Principal: SystemPrincipal, Input: input}); err != nil {
			return i, fmt.Errorf("seed activity %d (%q): %w", i, input.Title, err)
		}
	}
	return len(inputs), nil
}

// GetActivity returns an activity or ErrNotFound.
func (s *CatalogService) GetActivity(ctx context.Context, id string) (Activity, error) {
	if s == nil {
		return Activity{}, fmt.Errorf("CatalogService is nil")
	}

	if s.cache != nil {
		cached, ok, err := s.cache.GetActivity(ctx, id)
		if err != nil {
			s.loggerWith(ctx, "GetActivity", "activity_id", id).WarnContext(ctx, "activity cache read failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	stored, err := s.activities.GetActivity(ctx, id)
	if err != nil {
		return Activity{}, mapCatalogRepoError(err)
	}
	activity := toActivity(stored)

	if s.cache != nil {
		if err := s.cache.SetActivity(ctx, activity); err != nil {
			s.loggerWith(ctx, "GetActivity", "activity_id", id).WarnContext(ctx, "activity cache write failed", "error", err)
		}
	}
	return activity, nil
}

// ListActivities returns every activity soonest first, ties broken by id.
func (s *CatalogService) ListActivities(ctx context.Context) ([]ActivitySummary, error) {
	if s == nil {
		return nil, fmt.Errorf("CatalogService is nil")
	}

	stored, err := s.activities.ListActivities(ctx)
	if err != nil {
		return nil, mapCatalogRepoError(err)
	}

	summaries := make([]ActivitySummary, 0, len(stored))
	for _, item := range stored {
		summaries = append(summaries, ActivitySummary{Activity: toActivity(item.Activity), Occupancy: item.Booked})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		if !summaries[i].Start.Equal(summaries[j].Start) {
			return summaries[i].Start.Before(summaries[j].Start)
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

// Occupancy returns the live booking count of an activity.
func (s *CatalogService) Occupancy(ctx context.Context, id string) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("CatalogService is nil")
	}
	if _, err := s.GetActivity(ctx, id); err != nil {
		return 0, err
	}
	count, err := s.activities.CountBookings(ctx, id)
	if err != nil {
		return 0, mapCatalogRepoError(err)
	}
	return count, nil
}

func validateActivityInput(input ActivityInput) error {
	if strings.TrimSpace(input.Title) == "" {
		vErr := &ValidationError{}
		vErr.add("title", "title is required")
		return vErr
	}
	if !(scheduler.Window{Start: input.Start, End: input.End}).Valid() {
		return fmt.Errorf("%w: start %s, end %s", ErrInvalidWindow,
			input.Start.UTC().Format(time.RFC3339), input.End.UTC().Format(time.RFC3339))
	}
	if input.Capacity <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, input.Capacity)
	}
	return nil
}

func mapCatalogRepoError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("activity id collision: %w", err)
	default:
		return err
	}
}
