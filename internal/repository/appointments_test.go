package repository_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medidesk/clinic-server/internal/errs"
	"github.com/medidesk/clinic-server/internal/models"
	"github.com/medidesk/clinic-server/internal/repository"
	"github.com/medidesk/clinic-server/internal/storage"
)

func intPtr(i int) *int { return &i }

func newClinic(t *testing.T) (*repository.Patients, *repository.Appointments, *models.Patient) {
	t.Helper()
	store := storage.New(t.TempDir())
	assert.NoError(t, store.Init())

	patients := repository.NewPatients(store)
	appointments := repository.NewAppointments(store, patients)

	patient, err := patients.Create(models.CreatePatientRequest{
		FullName: "John Doe",
		Phone:    "0123456789",
	})
	assert.NoError(t, err)
	return patients, appointments, patient
}

func TestCreateAppointmentDefaults(t *testing.T) {
	_, appointments, patient := newClinic(t)

	created, err := appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID,
		Date:      "2025-01-10",
		Time:      "09:00",
	})
	assert.NoError(t, err)
	assert.Equal(t, 30, created.Duration)
	assert.Equal(t, models.StatusScheduled, created.Status)
	assert.Equal(t, "John Doe", created.PatientName)
	assert.NotZero(t, created.ID)
}

func TestCreateAppointmentValidation(t *testing.T) {
	_, appointments, patient := newClinic(t)

	tests := []struct {
		name string
		req  models.CreateAppointmentRequest
	}{
		{"missing patient", models.CreateAppointmentRequest{Date: "2025-01-10", Time: "09:00"}},
		{"missing date", models.CreateAppointmentRequest{PatientID: patient.ID, Time: "09:00"}},
		{"missing time", models.CreateAppointmentRequest{PatientID: patient.ID, Date: "2025-01-10"}},
		{"duration too short", models.CreateAppointmentRequest{PatientID: patient.ID, Date: "2025-01-10", Time: "09:00", Duration: 10}},
		{"duration too long", models.CreateAppointmentRequest{PatientID: patient.ID, Date: "2025-01-10", Time: "09:00", Duration: 180}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := appointments.Create(tt.req)
			var validationErr *errs.ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
	assert.Empty(t, appointments.List())
}

func TestCreateAppointmentUnknownPatient(t *testing.T) {
	_, appointments, _ := newClinic(t)

	_, err := appointments.Create(models.CreateAppointmentRequest{
		PatientID: 424242,
		Date:      "2025-01-10",
		Time:      "09:00",
	})
	var notFound *errs.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestSlotConflict(t *testing.T) {
	_, appointments, patient := newClinic(t)

	first, err := appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID,
		Date:      "2025-01-10",
		Time:      "09:00",
	})
	assert.NoError(t, err)

	// same slot, any patient: conflict
	_, err = appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID,
		Date:      "2025-01-10",
		Time:      "09:00",
	})
	var conflictErr *errs.ConflictError
	assert.ErrorAs(t, err, &conflictErr)

	// a different time is fine
	_, err = appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID,
		Date:      "2025-01-10",
		Time:      "09:30",
	})
	assert.NoError(t, err)

	// cancelling the first frees its slot for reuse
	_, err = appointments.UpdateStatus(first.ID, models.StatusCancelled)
	assert.NoError(t, err)

	_, err = appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID,
		Date:      "2025-01-10",
		Time:      "09:00",
	})
	assert.NoError(t, err)
}

func TestConcurrentCreateSameSlot(t *testing.T) {
	_, appointments, patient := newClinic(t)

	const workers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	var created int64

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := appointments.Create(models.CreateAppointmentRequest{
				PatientID: patient.ID,
				Date:      "2025-01-10",
				Time:      "09:00",
			})
			if err == nil {
				atomic.AddInt64(&created, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	// exactly one create may claim the slot
	assert.EqualValues(t, 1, created)
	assert.Len(t, appointments.List(), 1)
}

func TestRebookingCancelledAppointmentRechecksSlot(t *testing.T) {
	_, appointments, patient := newClinic(t)

	first, err := appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID, Date: "2025-01-10", Time: "09:00",
	})
	assert.NoError(t, err)

	_, err = appointments.UpdateStatus(first.ID, models.StatusCancelled)
	assert.NoError(t, err)

	// another appointment takes over the freed slot
	_, err = appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID, Date: "2025-01-10", Time: "09:00",
	})
	assert.NoError(t, err)

	// un-cancelling the first would put two live records in one slot
	_, err = appointments.UpdateStatus(first.ID, models.StatusScheduled)
	var conflictErr *errs.ConflictError
	assert.ErrorAs(t, err, &conflictErr)

	got, err := appointments.Get(first.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	// with the slot free again, re-booking succeeds
	assert.NoError(t, appointments.Delete(first.ID))
	second, err := appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID, Date: "2025-01-10", Time: "10:00",
	})
	assert.NoError(t, err)
	_, err = appointments.UpdateStatus(second.ID, models.StatusCancelled)
	assert.NoError(t, err)
	updated, err := appointments.UpdateStatus(second.ID, models.StatusConfirmed)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
}

func TestUpdateRechecksSlot(t *testing.T) {
	_, appointments, patient := newClinic(t)

	_, err := appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID, Date: "2025-01-10", Time: "09:00",
	})
	assert.NoError(t, err)
	second, err := appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID, Date: "2025-01-10", Time: "10:00",
	})
	assert.NoError(t, err)

	// moving the second onto the first's slot is a conflict
	_, err = appointments.Update(second.ID, models.UpdateAppointmentRequest{Time: strPtr("09:00")})
	var conflictErr *errs.ConflictError
	assert.ErrorAs(t, err, &conflictErr)

	// updating without touching the slot never conflicts with itself
	updated, err := appointments.Update(second.ID, models.UpdateAppointmentRequest{
		Notes:    strPtr("bring previous scans"),
		Duration: intPtr(45),
	})
	assert.NoError(t, err)
	assert.Equal(t, "bring previous scans", updated.Notes)
	assert.Equal(t, 45, updated.Duration)
	assert.Equal(t, "10:00", updated.Time)
}

func TestUpdateStatus(t *testing.T) {
	_, appointments, patient := newClinic(t)

	created, err := appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID, Date: "2025-01-10", Time: "09:00",
	})
	assert.NoError(t, err)

	updated, err := appointments.UpdateStatus(created.ID, models.StatusConfirmed)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
	assert.False(t, updated.UpdatedAt.IsZero())

	_, err = appointments.UpdateStatus(created.ID, "postponed")
	var validationErr *errs.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = appointments.UpdateStatus(999, models.StatusConfirmed)
	var notFound *errs.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestPatientNameIsACreationTimeSnapshot(t *testing.T) {
	patients, appointments, patient := newClinic(t)

	created, err := appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID, Date: "2025-01-10", Time: "09:00",
	})
	assert.NoError(t, err)

	_, err = patients.Update(patient.ID, models.UpdatePatientRequest{FullName: strPtr("John Doe-Smith")})
	assert.NoError(t, err)

	// the appointment keeps the name it saw at creation
	got, err := appointments.Get(created.ID)
	assert.NoError(t, err)
	assert.Equal(t, "John Doe", got.PatientName)
}

func TestDeleteAppointment(t *testing.T) {
	_, appointments, patient := newClinic(t)

	created, err := appointments.Create(models.CreateAppointmentRequest{
		PatientID: patient.ID, Date: "2025-01-10", Time: "09:00",
	})
	assert.NoError(t, err)

	var notFound *errs.NotFoundError
	assert.ErrorAs(t, appointments.Delete(999), &notFound)
	assert.Len(t, appointments.List(), 1)

	assert.NoError(t, appointments.Delete(created.ID))
	assert.Empty(t, appointments.List())
}
