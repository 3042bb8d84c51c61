package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/mschirtzinger/lifedeck/internal/schema"
)

var transactionColumns = []string{
	"id", "kind", "amount", "category", "description", "date", "recurring",
	"tags", "created_at", "updated_at",
}

type transactionRow struct {
	ID          string `db:"id"`
	Kind        string `db:"kind"`
	Amount      int64  `db:"amount"`
	Category    string `db:"category"`
	Description string `db:"description"`
	Date        string `db:"date"`
	Recurring   bool   `db:"recurring"`
	Tags        string `db:"tags"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func transactionToRow(t *schema.Transaction) transactionRow {
	return transactionRow{
		ID:          t.ID,
		Kind:        t.Kind,
		Amount:      t.Amount,
		Category:    t.Category,
		Description: schema.Truncate(t.Description, schema.MaxDescriptionLen),
		Date:        t.Date,
		Recurring:   t.Recurring,
		Tags:        schema.EncodeList(t.Tags, schema.MaxJSONLen),
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
	}
}

func (r transactionRow) toTransaction() schema.Transaction {
	t := schema.Transaction{
		ID:          r.ID,
		Kind:        r.Kind,
		Amount:      r.Amount,
		Category:    r.Category,
		Description: r.Description,
		Date:        r.Date,
		Recurring:   r.Recurring,
		Tags:        schema.DecodeList[string](r.Tags, schema.MaxJSONLen),
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
	t.SetDefaults()
	return t
}

// TransactionRepo persists finance records.
type TransactionRepo struct {
	q Querier
}

// NewTransactionRepo returns a TransactionRepo over q.
func NewTransactionRepo(q Querier) *TransactionRepo {
	return &TransactionRepo{q: q}
}

func (r *TransactionRepo) base() sq.SelectBuilder {
	return sq.Select(transactionColumns...).From("transactions")
}

// GetAll returns every transaction ordered by date.
func (r *TransactionRepo) GetAll(ctx context.Context) ([]schema.Transaction, error) {
	txs, err := selectAll(ctx, r.q, r.base().OrderBy("date", "created_at"), transactionRow.toTransaction)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}

// GetByMonth returns the transactions dated in month ("2006-01").
func (r *TransactionRepo) GetByMonth(ctx context.Context, month string) ([]schema.Transaction, error) {
	b := r.base().Where(sq.Like{"date": month + "-%"}).OrderBy("date", "created_at")
	txs, err := selectAll(ctx, r.q, b, transactionRow.toTransaction)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for %s: %w", month, err)
	}
	return txs, nil
}

// Upsert inserts or replaces the transaction keyed by id.
func (r *TransactionRepo) Upsert(ctx context.Context, t *schema.Transaction) error {
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("transactions", transactionColumns), transactionToRow(t)); err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", t.ID, err)
	}
	return nil
}

// Delete removes a transaction.
func (r *TransactionRepo) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "transactions", id)
}

var financeConfigColumns = []string{"id", "currency", "monthly_budget", "savings_goal", "categories", "updated_at"}

type financeConfigRow struct {
	ID            int    `db:"id"`
	Currency      string `db:"currency"`
	MonthlyBudget int64  `db:"monthly_budget"`
	SavingsGoal   int64  `db:"savings_goal"`
	Categories    string `db:"categories"`
	UpdatedAt     string `db:"updated_at"`
}

// FinanceConfigRepo persists the singleton finance configuration.
type FinanceConfigRepo struct {
	q Querier
}

// NewFinanceConfigRepo returns a FinanceConfigRepo over q.
func NewFinanceConfigRepo(q Querier) *FinanceConfigRepo {
	return &FinanceConfigRepo{q: q}
}

// Get returns the stored configuration, or the default when none has been
// saved yet.
func (r *FinanceConfigRepo) Get(ctx context.Context) (schema.FinanceConfig, error) {
	query, args, err := sq.Select(financeConfigColumns...).From("finance_config").Where(sq.Eq{"id": 1}).ToSql()
	if err != nil {
		return schema.FinanceConfig{}, fmt.Errorf("failed to build query: %w", err)
	}

	var row financeConfigRow
	if err := sqlx.GetContext(ctx, r.q, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return schema.DefaultFinanceConfig(), nil
		}
		return schema.FinanceConfig{}, fmt.Errorf("failed to read finance config: %w", err)
	}

	cfg := schema.FinanceConfig{
		Currency:      row.Currency,
		MonthlyBudget: row.MonthlyBudget,
		SavingsGoal:   row.SavingsGoal,
		UpdatedAt:     parseTime(row.UpdatedAt),
	}
	if cats := schema.DecodeList[string](row.Categories, schema.MaxJSONLen); len(cats) > 0 {
		cfg.Categories = cats
	}
	cfg.SetDefaults()
	return cfg, nil
}

// Save replaces the singleton configuration.
func (r *FinanceConfigRepo) Save(ctx context.Context, cfg *schema.FinanceConfig) error {
	row := financeConfigRow{
		ID:            1,
		Currency:      cfg.Currency,
		MonthlyBudget: cfg.MonthlyBudget,
		SavingsGoal:   cfg.SavingsGoal,
		Categories:    schema.EncodeList(cfg.Categories, schema.MaxJSONLen),
		UpdatedAt:     formatTime(cfg.UpdatedAt),
	}
	if _, err := sqlx.NamedExecContext(ctx, r.q, upsertSQL("finance_config", financeConfigColumns), row); err != nil {
		return fmt.Errorf("failed to save finance config: %w", err)
	}
	return nil
}
