package schema

import (
	"fmt"
	"time"
)

// Transaction kinds.
const (
	KindIncome  = "income"
	KindExpense = "expense"
)

// Transaction is one income or expense record. Amount is in minor units.
type Transaction struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Amount      int64     `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	Recurring   bool      `json:"recurring"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SetDefaults applies default values for optional fields.
func (t *Transaction) SetDefaults() {
	if t.Kind == "" {
		t.Kind = KindExpense
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
}

// Validate checks if the Transaction has valid field values.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	switch t.Kind {
	case KindIncome, KindExpense:
	default:
		return fmt.Errorf("invalid kind %q", t.Kind)
	}
	if t.Amount < 0 {
		return fmt.Errorf("amount must not be negative (got %d)", t.Amount)
	}
	return validDate(t.Date)
}

// Signed returns the amount with expenses negated.
func (t *Transaction) Signed() int64 {
	if t.Kind == KindExpense {
		return -t.Amount
	}
	return t.Amount
}

// Clone returns a deep copy.
func (t Transaction) Clone() Transaction {
	t.Tags = cloneSlice(t.Tags)
	return t
}

// DefaultCategories seeds FinanceConfig.Categories.
var DefaultCategories = []string{"housing", "food", "transport", "health", "leisure", "savings", "other"}

// FinanceConfig is the singleton budget configuration.
type FinanceConfig struct {
	Currency      string    `json:"currency"`
	MonthlyBudget int64     `json:"monthlyBudget"`
	SavingsGoal   int64     `json:"savingsGoal"`
	Categories    []string  `json:"categories"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DefaultFinanceConfig returns the configuration used before the user
// changes anything.
func DefaultFinanceConfig() FinanceConfig {
	return FinanceConfig{
		Currency:   "USD",
		Categories: cloneSlice(DefaultCategories),
	}
}

// SetDefaults applies default values for optional fields.
func (c *FinanceConfig) SetDefaults() {
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if c.Categories == nil {
		c.Categories = cloneSlice(DefaultCategories)
	}
}

// Validate checks if the FinanceConfig has valid field values.
func (c *FinanceConfig) Validate() error {
	if len(c.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code (got %q)", c.Currency)
	}
	if c.MonthlyBudget < 0 || c.SavingsGoal < 0 {
		return fmt.Errorf("budget and savings goal must not be negative")
	}
	return nil
}

// Clone returns a deep copy.
func (c FinanceConfig) Clone() FinanceConfig {
	c.Categories = cloneSlice(c.Categories)
	return c
}

// MonthSummary totals the transactions dated in month ("2006-01").
type MonthSummary struct {
	Month    string           `json:"month"`
	Income   int64            `json:"income"`
	Expenses int64            `json:"expenses"`
	Net      int64            `json:"net"`
	ByCat    map[string]int64 `json:"byCategory"`
	Budget   int64            `json:"budget"`
	Left     int64            `json:"left"`
}

// Summarize totals txs for month against cfg's budget.
func Summarize(txs []Transaction, cfg FinanceConfig, month string) MonthSummary {
	sum := MonthSummary{Month: month, ByCat: map[string]int64{}, Budget: cfg.MonthlyBudget}
	for i := range txs {
		tx := &txs[i]
		if len(tx.Date) < 7 || tx.Date[:7] != month {
			continue
		}
		if tx.Kind == KindIncome {
			sum.Income += tx.Amount
		} else {
			sum.Expenses += tx.Amount
			sum.ByCat[tx.Category] += tx.Amount
		}
	}
	sum.Net = sum.Income - sum.Expenses
	sum.Left = sum.Budget - sum.Expenses
	return sum
}
