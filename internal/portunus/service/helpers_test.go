package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/engine/enginetest"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/service"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/store/memory"
	"github.com/BrandonDHaskell/Portunus/terminal/internal/portunus/types"
)

const testDim = 128

var pngSample = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake")

var errDiskFull = errors.New("disk full")

// stepClock advances one second per call so CreatedAt ordering is stable.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type harness struct {
	engine   *enginetest.Fake
	subjects *memory.SubjectStore
	events   *memory.AccessEventStore
	devices  *memory.DeviceStore
	verify   *service.VerificationService
	register *service.RegistrationService
	query    *service.QueryService
}

func newHarness(t *testing.T, policy service.FallbackPolicy) *harness {
	t.Helper()
	h := &harness{
		engine:   &enginetest.Fake{},
		subjects: memory.NewSubjectStore(),
		events:   memory.NewAccessEventStore(),
		devices:  memory.NewDeviceStore(),
	}
	clock := newStepClock()
	reg := service.NewDeviceRegistry(h.devices, nil)

	h.verify = service.NewVerificationService(service.VerificationDeps{
		Subjects:        h.subjects,
		Events:          h.events,
		Engine:          h.engine,
		Policy:          policy,
		Devices:         reg,
		DefaultDeviceID: "terminal_01",
		Now:             clock.Now,
	})
	h.register = service.NewRegistrationService(service.RegistrationDeps{
		Subjects:          h.subjects,
		Engine:            h.engine,
		TemplateDimension: testDim,
		Now:               clock.Now,
	})
	h.query = service.NewQueryService(h.subjects, h.events, reg)
	return h
}

// enroll registers subjectID with a verified template through the service.
func (h *harness) enroll(t *testing.T, subjectID, name string) {
	t.Helper()
	h.engine.Enrolled(enginetest.Template(testDim, 0.5), "https://cdn.example/"+subjectID+".jpg")
	_, err := h.register.Register(context.Background(), types.RegisterRequest{
		SubjectID: subjectID,
		Name:      name,
		Sample:    pngSample,
	})
	if err != nil {
		t.Fatalf("enroll %s: %v", subjectID, err)
	}
}

// failingEvents rejects every append.
type failingEvents struct {
	*memory.AccessEventStore
}

func (failingEvents) AppendAccessEvent(context.Context, types.AccessEvent) error { return errDiskFull }

// failingSubjects fails every operation.
type failingSubjects struct {
	*memory.SubjectStore
}

func (failingSubjects) FindBySubjectID(context.Context, string) (types.Subject, error) {
	return types.Subject{}, errDiskFull
}
func (failingSubjects) MostRecentlyCreated(context.Context) (types.Subject, error) {
	return types.Subject{}, errDiskFull
}
func (failingSubjects) Upsert(context.Context, types.Subject) error { return errDiskFull }
