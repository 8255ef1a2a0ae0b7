package reconcile

import (
	"context"

	"casework-workers/internal/models"
)

// ApplicationResolver is the application-store surface the variants read.
type ApplicationResolver interface {
	MostRecentForSubject(ctx context.Context, subjectID string) (*models.Application, error)
	OpenForSubject(ctx context.Context, subjectID string) ([]*models.Application, error)
}

// AllocationFetcher dereferences an event's detail reference.
type AllocationFetcher interface {
	GetCurrentAllocation(ctx context.Context, detailURL string) (*models.Allocation, error)
}

// LocationFetcher resolves a subject's current location.
type LocationFetcher interface {
	GetCurrentLocation(ctx context.Context, subjectID string) (string, error)
}

// AllocationChanged reassigns the subject's most recently created open
// application to the officer and location named by the allocation read model.
type AllocationChanged struct {
	store       ApplicationResolver
	allocations AllocationFetcher
}

func NewAllocationChanged(store ApplicationResolver, allocations AllocationFetcher) *AllocationChanged {
	return &AllocationChanged{store: store, allocations: allocations}
}

func (v *AllocationChanged) EventType() string { return models.EventAllocationChanged }

func (v *AllocationChanged) ResolveApplications(ctx context.Context, subjectID string) ([]*models.Application, error) {
	app, err := v.store.MostRecentForSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, nil
	}
	return []*models.Application{app}, nil
}

func (v *AllocationChanged) FetchAssignment(ctx context.Context, event *models.EventEnvelope) (*models.Allocation, error) {
	return v.allocations.GetCurrentAllocation(ctx, event.DetailURL)
}

// LocationChanged moves every open application for the subject to the
// subject's new location. The officer is left unassigned; a following
// allocation event fills it in.
type LocationChanged struct {
	store     ApplicationResolver
	locations LocationFetcher
}

func NewLocationChanged(store ApplicationResolver, locations LocationFetcher) *LocationChanged {
	return &LocationChanged{store: store, locations: locations}
}

func (v *LocationChanged) EventType() string { return models.EventLocationChanged }

func (v *LocationChanged) ResolveApplications(ctx context.Context, subjectID string) ([]*models.Application, error) {
	return v.store.OpenForSubject(ctx, subjectID)
}

func (v *LocationChanged) FetchAssignment(ctx context.Context, event *models.EventEnvelope) (*models.Allocation, error) {
	location, err := v.locations.GetCurrentLocation(ctx, event.SubjectID)
	if err != nil {
		return nil, err
	}
	return &models.Allocation{Location: location}, nil
}
