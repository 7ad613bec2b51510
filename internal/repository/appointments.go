package repository

import (
	"time"

	"github.com/medidesk/clinic-server/internal/errs"
	"github.com/medidesk/clinic-server/internal/models"
	"github.com/medidesk/clinic-server/internal/storage"
)

const appointmentsCollection = "Appointments"

const defaultDuration = 30

// Appointments enforces scheduling invariants: the patient must exist, and
// no two non-cancelled appointments may occupy the same date+time slot.
type Appointments struct {
	store    *storage.Store
	patients *Patients
}

// NewAppointments creates an appointments repository. Patient existence is
// resolved through the patients repository.
func NewAppointments(store *storage.Store, patients *Patients) *Appointments {
	return &Appointments{store: store, patients: patients}
}

// Create validates and persists a new appointment. The patient's name is
// snapshotted at creation time and not re-synced on later renames.
func (r *Appointments) Create(req models.CreateAppointmentRequest) (*models.Appointment, error) {
	var messages []string
	if req.PatientID == 0 {
		messages = append(messages, "patient is required")
	}
	if req.Date == "" {
		messages = append(messages, "date is required")
	}
	if req.Time == "" {
		messages = append(messages, "time is required")
	}
	if req.Duration != 0 && (req.Duration < 15 || req.Duration > 120) {
		messages = append(messages, "duration must be between 15 and 120 minutes")
	}
	if len(messages) > 0 {
		return nil, &errs.ValidationError{Messages: messages}
	}

	duration := req.Duration
	if duration == 0 {
		duration = defaultDuration
	}

	// the existence check, the slot check and the insert must run as one step
	var appointment models.Appointment
	err := r.store.WithLock(func() error {
		patient, err := r.patients.Get(req.PatientID)
		if err != nil {
			return err
		}
		if err := r.checkSlot(req.Date, req.Time, 0); err != nil {
			return err
		}
		appointment = models.Appointment{
			ID:          nextID(),
			PatientID:   patient.ID,
			PatientName: patient.FullName,
			Date:        req.Date,
			Time:        req.Time,
			Duration:    duration,
			Notes:       req.Notes,
			Status:      models.StatusScheduled,
			CreatedAt:   time.Now().UTC(),
		}
		rec, err := storage.Encode(appointment)
		if err != nil {
			return err
		}
		return r.store.Insert(appointmentsCollection, rec)
	})
	if err != nil {
		return nil, err
	}
	return &appointment, nil
}

// List returns all appointments in insertion order.
func (r *Appointments) List() []models.Appointment {
	return decodeAll[models.Appointment](r.store.List(appointmentsCollection))
}

// Get returns the appointment with the given id.
func (r *Appointments) Get(id int64) (*models.Appointment, error) {
	for _, a := range r.List() {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, &errs.NotFoundError{Resource: "appointment"}
}

// Update merges the set fields onto an existing appointment. When date or
// time change, the slot conflict check runs again against the merged values.
func (r *Appointments) Update(id int64, req models.UpdateAppointmentRequest) (*models.Appointment, error) {
	if req.Duration != nil && (*req.Duration < 15 || *req.Duration > 120) {
		return nil, errs.NewValidation("duration must be between 15 and 120 minutes")
	}

	err := r.store.WithLock(func() error {
		current, err := r.Get(id)
		if err != nil {
			return err
		}

		date, slotTime := current.Date, current.Time
		partial := storage.Record{}
		if req.Date != nil {
			date = *req.Date
			partial["date"] = date
		}
		if req.Time != nil {
			slotTime = *req.Time
			partial["time"] = slotTime
		}
		if req.Duration != nil {
			partial["duration"] = *req.Duration
		}
		if req.Notes != nil {
			partial["notes"] = *req.Notes
		}
		if date == "" {
			return errs.NewValidation("date is required")
		}
		if slotTime == "" {
			return errs.NewValidation("time is required")
		}

		if date != current.Date || slotTime != current.Time {
			if err := r.checkSlot(date, slotTime, id); err != nil {
				return err
			}
		}
		return r.store.UpdateByID(appointmentsCollection, id, partial)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(id)
}

// UpdateStatus mutates only the status (and updatedAt) of an appointment.
// Re-booking a cancelled appointment reclaims its slot, so the conflict
// check runs again when a record leaves the cancelled status.
func (r *Appointments) UpdateStatus(id int64, status string) (*models.Appointment, error) {
	if !models.ValidStatus(status) {
		return nil, errs.NewValidation("invalid appointment status")
	}
	err := r.store.WithLock(func() error {
		current, err := r.Get(id)
		if err != nil {
			return err
		}
		if current.Status == models.StatusCancelled && status != models.StatusCancelled {
			if err := r.checkSlot(current.Date, current.Time, id); err != nil {
				return err
			}
		}
		return r.store.UpdateByID(appointmentsCollection, id, storage.Record{"status": status})
	})
	if err != nil {
		return nil, err
	}
	return r.Get(id)
}

// Delete removes an appointment permanently.
func (r *Appointments) Delete(id int64) error {
	if err := r.store.DeleteByID(appointmentsCollection, id); err != nil {
		return asNotFound(err, "appointment")
	}
	return nil
}

// checkSlot rejects a date+time pair already held by a non-cancelled
// appointment. Cancelled appointments free their slot; excludeID ignores
// the record itself on updates.
func (r *Appointments) checkSlot(date, slotTime string, excludeID int64) error {
	for _, a := range r.List() {
		if a.ID == excludeID {
			continue
		}
		if a.Date == date && a.Time == slotTime && a.Status != models.StatusCancelled {
			return &errs.ConflictError{Reason: "an appointment already exists at this time"}
		}
	}
	return nil
}
