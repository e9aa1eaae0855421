package service

import (
	"context"
	"errors"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

// QueryService serves the admin read paths.
type QueryService struct {
	subjects store.SubjectStore
	events   store.AccessEventStore
	devices  *DeviceRegistry
}

func NewQueryService(subjects store.SubjectStore, events store.AccessEventStore, devices *DeviceRegistry) *QueryService {
	return &QueryService{subjects: subjects, events: events, devices: devices}
}

func (q *QueryService) Subject(ctx context.Context, subjectID string) (types.Subject, error) {
	s, err := q.subjects.FindBySubjectID(ctx, subjectID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return types.Subject{}, storeErr("find subject", err)
	}
	return s, err
}

func (q *QueryService) Subjects(ctx context.Context) ([]types.Subject, error) {
	out, err := q.subjects.ListAll(ctx)
	if err != nil {
		return nil, storeErr("list subjects", err)
	}
	return out, nil
}

func (q *QueryService) AccessEvents(ctx context.Context, f store.AccessEventFilter, p store.Page) (store.AccessEventPage, error) {
	page, err := q.events.ListAccessEvents(ctx, f, p.Normalize())
	if err != nil {
		return store.AccessEventPage{}, storeErr("list access events", err)
	}
	return page, nil
}

func (q *QueryService) Stats(ctx context.Context) (types.Stats, error) {
	var st types.Stats
	var err error

	if st.TotalSubjects, err = q.subjects.Count(ctx); err != nil {
		return types.Stats{}, storeErr("count subjects", err)
	}
	if st.ActiveDevices, err = q.devices.ActiveCount(ctx); err != nil {
		return types.Stats{}, storeErr("count devices", err)
	}
	counts, err := q.events.CountByOutcome(ctx)
	if err != nil {
		return types.Stats{}, storeErr("count events", err)
	}
	st.GrantedEvents = counts[types.OutcomeGranted]
	st.DeniedEvents = counts[types.OutcomeDenied]
	st.UnavailableEvents = counts[types.OutcomeEngineUnavailable]
	return st, nil
}
