package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medidesk/clinic-server/internal/errs"
	"github.com/medidesk/clinic-server/internal/models"
	"github.com/medidesk/clinic-server/internal/repository"
	"github.com/medidesk/clinic-server/internal/service"
	"github.com/medidesk/clinic-server/internal/utils"
)

// Handler wires the HTTP API to the auth service and the entity
// repositories. It is a thin consumer: no business rules live here, only
// binding and error-to-status mapping.
type Handler struct {
	auth         *service.Auth
	patients     *repository.Patients
	appointments *repository.Appointments
	finance      *repository.Finance
	logger       *utils.Logger
}

// NewHandler creates a new API handler
func NewHandler(auth *service.Auth, patients *repository.Patients, appointments *repository.Appointments, finance *repository.Finance, logger *utils.Logger) *Handler {
	return &Handler{
		auth:         auth,
		patients:     patients,
		appointments: appointments,
		finance:      finance,
		logger:       logger,
	}
}

// SetupRoutes registers all API routes. The auth endpoints are rate limited
// per client IP; everything else requires a bearer token.
func (h *Handler) SetupRoutes(router *gin.Engine, limiter *RateLimiter) {
	api := router.Group("/api")

	api.POST("/auth/register", RateLimit(limiter), h.register)
	api.POST("/auth/login", RateLimit(limiter), h.login)

	protected := api.Group("", AuthMiddleware())
	{
		protected.POST("/auth/logout", h.logout)
		protected.GET("/auth/session", h.session)

		protected.GET("/patients", h.listPatients)
		protected.POST("/patients", h.createPatient)
		protected.GET("/patients/search", h.searchPatients)
		protected.GET("/patients/:id", h.getPatient)
		protected.PUT("/patients/:id", h.updatePatient)
		protected.DELETE("/patients/:id", h.deletePatient)

		protected.GET("/appointments", h.listAppointments)
		protected.POST("/appointments", h.createAppointment)
		protected.GET("/appointments/:id", h.getAppointment)
		protected.PUT("/appointments/:id", h.updateAppointment)
		protected.PATCH("/appointments/:id/status", h.updateAppointmentStatus)
		protected.DELETE("/appointments/:id", h.deleteAppointment)

		protected.GET("/incomes", h.listIncomes)
		protected.POST("/incomes", h.createIncome)
		protected.PUT("/incomes/:id", h.updateIncome)
		protected.DELETE("/incomes/:id", h.deleteIncome)

		protected.GET("/expenses", h.listExpenses)
		protected.POST("/expenses", h.createExpense)
		protected.PUT("/expenses/:id", h.updateExpense)
		protected.DELETE("/expenses/:id", h.deleteExpense)

		protected.GET("/finance/summary", h.financeSummary)
		protected.GET("/finance/monthly", h.financeMonthly)
	}
}

// Authentication handlers

func (h *Handler) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password, req.ConfirmPassword)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.RegisterResponse{
		Status:   "success",
		UserID:   user.ID,
		Username: user.Username,
	})
}

func (h *Handler) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, err := h.auth.SessionToken(session)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AuthResponse{
		Status:    "success",
		SessionID: session.ID,
		Username:  session.Username,
		Token:     token,
		LoginTime: session.LoginTime.Format(time.RFC3339),
	})
}

func (h *Handler) logout(c *gin.Context) {
	if err := h.auth.Logout(); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "Logged out"})
}

func (h *Handler) session(c *gin.Context) {
	session, ok := h.auth.CurrentSession()
	if !ok {
		h.writeError(c, &errs.NotFoundError{Resource: "session"})
		return
	}
	c.JSON(http.StatusOK, models.AuthResponse{
		Status:    "success",
		SessionID: session.ID,
		Username:  session.Username,
		LoginTime: session.LoginTime.Format(time.RFC3339),
	})
}

// Patient handlers

func (h *Handler) listPatients(c *gin.Context) {
	c.JSON(http.StatusOK, h.patients.List())
}

func (h *Handler) createPatient(c *gin.Context) {
	var req models.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	patient, err := h.patients.Create(req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, patient)
}

func (h *Handler) searchPatients(c *gin.Context) {
	c.JSON(http.StatusOK, h.patients.Search(c.Query("q")))
}

func (h *Handler) getPatient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	patient, err := h.patients.Get(id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, patient)
}

func (h *Handler) updatePatient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	patient, err := h.patients.Update(id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, patient)
}

func (h *Handler) deletePatient(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.patients.Delete(id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "Patient deleted"})
}

// Appointment handlers

func (h *Handler) listAppointments(c *gin.Context) {
	c.JSON(http.StatusOK, h.appointments.List())
}

func (h *Handler) createAppointment(c *gin.Context) {
	var req models.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	appointment, err := h.appointments.Create(req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appointment)
}

func (h *Handler) getAppointment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	appointment, err := h.appointments.Get(id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

func (h *Handler) updateAppointment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	appointment, err := h.appointments.Update(id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

func (h *Handler) updateAppointmentStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.UpdateAppointmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	appointment, err := h.appointments.UpdateStatus(id, req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appointment)
}

func (h *Handler) deleteAppointment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.appointments.Delete(id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "Appointment deleted"})
}

// Finance handlers

func (h *Handler) listIncomes(c *gin.Context) {
	c.JSON(http.StatusOK, h.finance.ListIncomes())
}

func (h *Handler) createIncome(c *gin.Context) {
	var req models.CreateIncomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	income, err := h.finance.CreateIncome(req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, income)
}

func (h *Handler) updateIncome(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.UpdateIncomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	income, err := h.finance.UpdateIncome(id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, income)
}

func (h *Handler) deleteIncome(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.finance.DeleteIncome(id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "Income deleted"})
}

func (h *Handler) listExpenses(c *gin.Context) {
	c.JSON(http.StatusOK, h.finance.ListExpenses())
}

func (h *Handler) createExpense(c *gin.Context) {
	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	expense, err := h.finance.CreateExpense(req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

func (h *Handler) updateExpense(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req models.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	expense, err := h.finance.UpdateExpense(id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, expense)
}

func (h *Handler) deleteExpense(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.finance.DeleteExpense(id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "Expense deleted"})
}

func (h *Handler) financeSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.finance.Summary())
}

func (h *Handler) financeMonthly(c *gin.Context) {
	month, errM := strconv.Atoi(c.Query("month"))
	year, errY := strconv.Atoi(c.Query("year"))
	if errM != nil || errY != nil || month < 1 || month > 12 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "BAD_REQUEST",
			Message: "month and year query parameters are required",
		})
		return
	}
	c.JSON(http.StatusOK, h.finance.Monthly(time.Month(month), year))
}

// Helpers

// writeError maps the business error classes onto HTTP statuses. Anything
// unrecognised is an internal fault.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		validationErr *errs.ValidationError
		conflictErr   *errs.ConflictError
		notFoundErr   *errs.NotFoundError
		lockoutErr    *errs.LockoutError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status: "error", Code: "VALIDATION_ERROR", Message: validationErr.Error(),
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Status: "error", Code: "CONFLICT", Message: conflictErr.Error(),
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Status: "error", Code: "NOT_FOUND", Message: notFoundErr.Error(),
		})
	case errors.As(err, &lockoutErr):
		c.JSON(http.StatusLocked, models.ErrorResponse{
			Status: "error", Code: "LOCKED", Message: lockoutErr.Error(),
		})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{
			Status: "error", Code: "UNAUTHORIZED", Message: err.Error(),
		})
	default:
		h.logger.Error("internal error: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Status: "error", Code: "INTERNAL_ERROR", Message: "Something went wrong",
		})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "BAD_REQUEST",
		Message: err.Error(),
	})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    "BAD_REQUEST",
			Message: "Invalid id",
		})
		return 0, false
	}
	return id, true
}
