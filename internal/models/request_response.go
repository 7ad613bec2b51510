package models

// Request models. Business validation happens in the repositories and the
// auth service, so the bindings here stay permissive; update requests use
// pointers to distinguish "absent" from "set to zero value".

type RegisterRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreatePatientRequest struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Notes    string `json:"notes"`
}

type UpdatePatientRequest struct {
	FullName *string `json:"fullName"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email"`
	Notes    *string `json:"notes"`
}

type CreateAppointmentRequest struct {
	PatientID int64  `json:"patientId"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Duration  int    `json:"duration"`
	Notes     string `json:"notes"`
}

type UpdateAppointmentRequest struct {
	Date     *string `json:"date"`
	Time     *string `json:"time"`
	Duration *int    `json:"duration"`
	Notes    *string `json:"notes"`
}

type UpdateAppointmentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CreateIncomeRequest struct {
	Amount      float64 `json:"amount"`
	Method      string  `json:"method"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
}

type UpdateIncomeRequest struct {
	Amount      *float64 `json:"amount"`
	Method      *string  `json:"method"`
	Description *string  `json:"description"`
	Date        *string  `json:"date"`
}

type CreateExpenseRequest struct {
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
}

type UpdateExpenseRequest struct {
	Amount      *float64 `json:"amount"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	Date        *string  `json:"date"`
}

// Response models

type AuthResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"sessionId,omitempty"`
	Username  string `json:"username,omitempty"`
	Token     string `json:"token,omitempty"`
	LoginTime string `json:"loginTime,omitempty"`
}

type RegisterResponse struct {
	Status   string `json:"status"`
	UserID   int64  `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
}

type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// FinanceSummary holds the all-time income/expense totals and margin.
type FinanceSummary struct {
	TotalIncome  float64 `json:"totalIncome"`
	TotalExpense float64 `json:"totalExpense"`
	Margin       float64 `json:"margin"`
}

// MonthlyReport holds the finance records and totals of one calendar month.
type MonthlyReport struct {
	Incomes      []Income  `json:"incomes"`
	Expenses     []Expense `json:"expenses"`
	TotalIncome  float64   `json:"totalIncome"`
	TotalExpense float64   `json:"totalExpense"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
