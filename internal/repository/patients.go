package repository

import (
	"regexp"
	"strings"
	"time"

	"github.com/medidesk/clinic-server/internal/errs"
	"github.com/medidesk/clinic-server/internal/models"
	"github.com/medidesk/clinic-server/internal/storage"
)

const patientsCollection = "Patients"

var (
	phonePattern = regexp.MustCompile(`^\d{10}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Patients enforces patient invariants: required name, a valid phone unique
// across all patients, and a valid email unique when present.
type Patients struct {
	store *storage.Store
}

// NewPatients creates a patients repository over the store.
func NewPatients(store *storage.Store) *Patients {
	return &Patients{store: store}
}

// Create validates and persists a new patient.
func (r *Patients) Create(req models.CreatePatientRequest) (*models.Patient, error) {
	var messages []string
	fullName := strings.TrimSpace(req.FullName)
	if len(fullName) < 2 {
		messages = append(messages, "full name is required (minimum 2 characters)")
	}
	if !phonePattern.MatchString(req.Phone) {
		messages = append(messages, "phone must contain exactly 10 digits")
	}
	if req.Email != "" && !emailPattern.MatchString(req.Email) {
		messages = append(messages, "email must have a valid format")
	}
	if len(messages) > 0 {
		return nil, &errs.ValidationError{Messages: messages}
	}

	patient := models.Patient{
		ID:        nextID(),
		FullName:  fullName,
		Phone:     req.Phone,
		Email:     req.Email,
		Notes:     req.Notes,
		CreatedAt: time.Now().UTC(),
	}

	// the uniqueness check and the insert must run as one step
	err := r.store.WithLock(func() error {
		if err := r.checkUnique(req.Phone, req.Email, 0); err != nil {
			return err
		}
		rec, err := storage.Encode(patient)
		if err != nil {
			return err
		}
		return r.store.Insert(patientsCollection, rec)
	})
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

// List returns all patients in insertion order.
func (r *Patients) List() []models.Patient {
	return decodeAll[models.Patient](r.store.List(patientsCollection))
}

// Get returns the patient with the given id.
func (r *Patients) Get(id int64) (*models.Patient, error) {
	for _, p := range r.List() {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, &errs.NotFoundError{Resource: "patient"}
}

// Search returns all patients whose name, phone or email contains the term,
// case-insensitively. An empty result is a valid answer, not an error.
func (r *Patients) Search(term string) []models.Patient {
	term = strings.ToLower(term)
	matches := []models.Patient{}
	for _, p := range r.List() {
		if strings.Contains(strings.ToLower(p.FullName), term) ||
			strings.Contains(p.Phone, term) ||
			strings.Contains(strings.ToLower(p.Email), term) {
			matches = append(matches, p)
		}
	}
	return matches
}

// Update merges the set fields onto an existing patient, re-checking phone
// and email uniqueness when they change.
func (r *Patients) Update(id int64, req models.UpdatePatientRequest) (*models.Patient, error) {
	partial := storage.Record{}
	var messages []string
	if req.FullName != nil {
		fullName := strings.TrimSpace(*req.FullName)
		if len(fullName) < 2 {
			messages = append(messages, "full name is required (minimum 2 characters)")
		}
		partial["fullName"] = fullName
	}
	if req.Phone != nil {
		if !phonePattern.MatchString(*req.Phone) {
			messages = append(messages, "phone must contain exactly 10 digits")
		}
		partial["phone"] = *req.Phone
	}
	if req.Email != nil {
		if *req.Email != "" && !emailPattern.MatchString(*req.Email) {
			messages = append(messages, "email must have a valid format")
		}
		partial["email"] = *req.Email
	}
	if req.Notes != nil {
		partial["notes"] = *req.Notes
	}
	if len(messages) > 0 {
		return nil, &errs.ValidationError{Messages: messages}
	}

	phone, email := "", ""
	if req.Phone != nil {
		phone = *req.Phone
	}
	if req.Email != nil {
		email = *req.Email
	}
	err := r.store.WithLock(func() error {
		if _, err := r.Get(id); err != nil {
			return err
		}
		if err := r.checkUnique(phone, email, id); err != nil {
			return err
		}
		return r.store.UpdateByID(patientsCollection, id, partial)
	})
	if err != nil {
		return nil, err
	}
	return r.Get(id)
}

// Delete removes a patient permanently. There is no soft-delete or recovery.
func (r *Patients) Delete(id int64) error {
	if err := r.store.DeleteByID(patientsCollection, id); err != nil {
		return asNotFound(err, "patient")
	}
	return nil
}

// checkUnique rejects a phone or non-empty email already held by another
// patient. Empty values are skipped; excludeID ignores the record itself on
// updates.
func (r *Patients) checkUnique(phone, email string, excludeID int64) error {
	for _, p := range r.List() {
		if p.ID == excludeID {
			continue
		}
		if phone != "" && p.Phone == phone {
			return &errs.ConflictError{Reason: "a patient with this phone already exists"}
		}
		if email != "" && p.Email == email {
			return &errs.ConflictError{Reason: "a patient with this email already exists"}
		}
	}
	return nil
}
