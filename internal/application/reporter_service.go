package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/example/carebook/internal/persistence"
)

// RosterStore captures the reads needed to build an attendee roster.
type RosterStore interface {
	GetActivity(ctx context.Context, id string) (persistence.Activity, error)
	ListRoster(ctx context.Context, activityID string) ([]persistence.RosterRow, error)
}

// ReporterService builds attendance views for organizers.
type ReporterService struct {
	store  RosterStore
	logger *slog.Logger
}

// NewReporterService constructs a reporter backed by store.
func NewReporterService(store RosterStore, logger *slog.Logger) *ReporterService {
	return &ReporterService{store: store, logger: defaultLogger(logger)}
}

// AttendeeRoster lists everyone booked on the activity, ordered by
// case-insensitive person name and then person id.
func (s *ReporterService) AttendeeRoster(ctx context.Context, principal Principal, activityID string) (entries []RosterEntry, err error) {
	if s == nil {
		err = fmt.Errorf("ReporterService is nil")
		return
	}

	logger := serviceLogger(ctx, s.logger, "ReporterService", "AttendeeRoster",
		"principal", principal.Handle, "activity_id", activityID)
	defer func() {
		if err != nil {
			logFailure(ctx, logger, "failed to build roster", err)
		}
	}()

	if !principal.IsAdmin() {
		err = ErrUnauthorized
		return
	}
	if _, err = s.store.GetActivity(ctx, activityID); err != nil {
		err = mapCatalogRepoError(err)
		return
	}

	var rows []persistence.RosterRow
	rows, err = s.store.ListRoster(ctx, activityID)
	if err != nil {
		return
	}

	entries = make([]RosterEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, RosterEntry{
			PersonName:      row.PersonName,
			PersonID:        row.PersonID,
			BookedBy:        row.BookedBy,
			CreatedAt:       row.CreatedAt,
			CaregiverHandle: row.CaregiverHandle,
			Confirmation:    toConfirmation(row.Confirmation),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].PersonName), strings.ToLower(entries[j].PersonName)
		if a != b {
			return a < b
		}
		return entries[i].PersonID < entries[j].PersonID
	})
	return
}
