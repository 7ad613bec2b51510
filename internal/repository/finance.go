package repository

import (
	"time"

	"github.com/medidesk/clinic-server/internal/errs"
	"github.com/medidesk/clinic-server/internal/models"
	"github.com/medidesk/clinic-server/internal/storage"
)

const (
	incomesCollection  = "Incomes"
	expensesCollection = "Expenses"

	defaultMethod   = "cash"
	defaultCategory = "other"

	dateLayout = "2006-01-02"
)

// Finance manages the income and expense collections and derives the
// clinic's financial reports from them.
type Finance struct {
	store *storage.Store
}

// NewFinance creates a finance repository over the store.
func NewFinance(store *storage.Store) *Finance {
	return &Finance{store: store}
}

// CreateIncome validates and persists a new income record, defaulting the
// payment method to cash and the date to today.
func (r *Finance) CreateIncome(req models.CreateIncomeRequest) (*models.Income, error) {
	if req.Amount <= 0 {
		return nil, errs.NewValidation("amount must be positive")
	}

	income := models.Income{
		ID:          nextID(),
		Amount:      req.Amount,
		Method:      req.Method,
		Description: req.Description,
		Date:        req.Date,
		CreatedAt:   time.Now().UTC(),
	}
	if income.Method == "" {
		income.Method = defaultMethod
	}
	if income.Date == "" {
		income.Date = time.Now().UTC().Format(dateLayout)
	}

	rec, err := storage.Encode(income)
	if err != nil {
		return nil, err
	}
	if err := r.store.Insert(incomesCollection, rec); err != nil {
		return nil, err
	}
	return &income, nil
}

// CreateExpense validates and persists a new expense record, defaulting the
// category to other and the date to today.
func (r *Finance) CreateExpense(req models.CreateExpenseRequest) (*models.Expense, error) {
	if req.Amount <= 0 {
		return nil, errs.NewValidation("amount must be positive")
	}

	expense := models.Expense{
		ID:          nextID(),
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Date:        req.Date,
		CreatedAt:   time.Now().UTC(),
	}
	if expense.Category == "" {
		expense.Category = defaultCategory
	}
	if expense.Date == "" {
		expense.Date = time.Now().UTC().Format(dateLayout)
	}

	rec, err := storage.Encode(expense)
	if err != nil {
		return nil, err
	}
	if err := r.store.Insert(expensesCollection, rec); err != nil {
		return nil, err
	}
	return &expense, nil
}

// ListIncomes returns all income records in insertion order.
func (r *Finance) ListIncomes() []models.Income {
	return decodeAll[models.Income](r.store.List(incomesCollection))
}

// ListExpenses returns all expense records in insertion order.
func (r *Finance) ListExpenses() []models.Expense {
	return decodeAll[models.Expense](r.store.List(expensesCollection))
}

// UpdateIncome merges the set fields onto an existing income record.
func (r *Finance) UpdateIncome(id int64, req models.UpdateIncomeRequest) (*models.Income, error) {
	partial, err := financePartial(req.Amount, req.Description, req.Date)
	if err != nil {
		return nil, err
	}
	if req.Method != nil {
		partial["method"] = *req.Method
	}
	if err := r.store.UpdateByID(incomesCollection, id, partial); err != nil {
		return nil, asNotFound(err, "income")
	}
	for _, in := range r.ListIncomes() {
		if in.ID == id {
			return &in, nil
		}
	}
	return nil, &errs.NotFoundError{Resource: "income"}
}

// UpdateExpense merges the set fields onto an existing expense record.
func (r *Finance) UpdateExpense(id int64, req models.UpdateExpenseRequest) (*models.Expense, error) {
	partial, err := financePartial(req.Amount, req.Description, req.Date)
	if err != nil {
		return nil, err
	}
	if req.Category != nil {
		partial["category"] = *req.Category
	}
	if err := r.store.UpdateByID(expensesCollection, id, partial); err != nil {
		return nil, asNotFound(err, "expense")
	}
	for _, ex := range r.ListExpenses() {
		if ex.ID == id {
			return &ex, nil
		}
	}
	return nil, &errs.NotFoundError{Resource: "expense"}
}

// DeleteIncome removes an income record permanently.
func (r *Finance) DeleteIncome(id int64) error {
	if err := r.store.DeleteByID(incomesCollection, id); err != nil {
		return asNotFound(err, "income")
	}
	return nil
}

// DeleteExpense removes an expense record permanently.
func (r *Finance) DeleteExpense(id int64) error {
	if err := r.store.DeleteByID(expensesCollection, id); err != nil {
		return asNotFound(err, "expense")
	}
	return nil
}

// Summary returns the all-time totals and the resulting margin.
func (r *Finance) Summary() models.FinanceSummary {
	var summary models.FinanceSummary
	for _, in := range r.ListIncomes() {
		summary.TotalIncome += in.Amount
	}
	for _, ex := range r.ListExpenses() {
		summary.TotalExpense += ex.Amount
	}
	summary.Margin = summary.TotalIncome - summary.TotalExpense
	return summary
}

// Monthly returns the records and totals of one calendar month.
func (r *Finance) Monthly(month time.Month, year int) models.MonthlyReport {
	report := models.MonthlyReport{
		Incomes:  []models.Income{},
		Expenses: []models.Expense{},
	}
	for _, in := range r.ListIncomes() {
		if inMonth(in.Date, month, year) {
			report.Incomes = append(report.Incomes, in)
			report.TotalIncome += in.Amount
		}
	}
	for _, ex := range r.ListExpenses() {
		if inMonth(ex.Date, month, year) {
			report.Expenses = append(report.Expenses, ex)
			report.TotalExpense += ex.Amount
		}
	}
	return report
}

func inMonth(date string, month time.Month, year int) bool {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return false
	}
	return d.Month() == month && d.Year() == year
}

func financePartial(amount *float64, description, date *string) (storage.Record, error) {
	partial := storage.Record{}
	if amount != nil {
		if *amount <= 0 {
			return nil, errs.NewValidation("amount must be positive")
		}
		partial["amount"] = *amount
	}
	if description != nil {
		partial["description"] = *description
	}
	if date != nil {
		partial["date"] = *date
	}
	return partial, nil
}
