package models

import (
	"time"
)

// Appointment statuses. Cancelled appointments free their slot for reuse.
const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// User represents a user account. Password holds the one-way hash, never
// plaintext; user records never appear in API responses.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Patient represents a clinic patient. Phone is unique across patients;
// email is unique when present.
type Patient struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"fullName"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Appointment represents a scheduled visit. PatientName is a snapshot of
// the patient's name at creation time and is not re-synced on rename.
type Appointment struct {
	ID          int64     `json:"id"`
	PatientID   int64     `json:"patientId"`
	PatientName string    `json:"patientName"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Duration    int       `json:"duration"`
	Notes       string    `json:"notes"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Income represents money received by the clinic.
type Income struct {
	ID          int64     `json:"id"`
	Amount      float64   `json:"amount"`
	Method      string    `json:"method"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Expense represents money spent by the clinic.
type Expense struct {
	ID          int64     `json:"id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LoginAttempt is one entry of the ephemeral attempts log consumed by the
// login guard. Entries older than the lockout window are logically expired.
type LoginAttempt struct {
	Username  string    `json:"username"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Session marks the single active authenticated user. It is created on
// login and destroyed on logout.
type Session struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	LoginTime time.Time `json:"loginTime"`
}
