package schema

import "testing"

func TestSummarize(t *testing.T) {
	cfg := DefaultFinanceConfig()
	cfg.MonthlyBudget = 100000

	txs := []Transaction{
		{Kind: KindIncome, Amount: 250000, Date: "2026-10-01"},
		{Kind: KindExpense, Amount: 1999, Category: "food", Date: "2026-10-03"},
		{Kind: KindExpense, Amount: 1, Category: "food", Date: "2026-10-04"},
		{Kind: KindExpense, Amount: 50000, Category: "housing", Date: "2026-10-05"},
		{Kind: KindExpense, Amount: 7000, Category: "food", Date: "2026-09-30"}, // other month
		{Kind: KindExpense, Amount: 10, Category: "food"},                       // undated
	}

	sum := Summarize(txs, cfg, "2026-10")

	if sum.Income != 250000 {
		t.Errorf("Income = %d, want 250000", sum.Income)
	}
	if sum.Expenses != 52000 {
		t.Errorf("Expenses = %d, want 52000", sum.Expenses)
	}
	if sum.Net != 198000 {
		t.Errorf("Net = %d, want 198000", sum.Net)
	}
	if sum.ByCat["food"] != 2000 {
		t.Errorf("ByCat[food] = %d, want 2000", sum.ByCat["food"])
	}
	if sum.Left != 48000 {
		t.Errorf("Left = %d, want 48000", sum.Left)
	}
}

func TestTransaction_Validate(t *testing.T) {
	tx := Transaction{ID: "x-1"}
	tx.SetDefaults()
	if err := tx.Validate(); err != nil {
		t.Fatalf("defaulted transaction should validate: %v", err)
	}
	if tx.Signed() != 0 {
		t.Errorf("Signed() = %d, want 0", tx.Signed())
	}

	tx.Amount = -5
	if err := tx.Validate(); err == nil {
		t.Error("negative amount should fail validation")
	}

	tx.Amount = 500
	if tx.Signed() != -500 {
		t.Errorf("Signed() for expense = %d, want -500", tx.Signed())
	}
}

func TestFinanceConfig_Defaults(t *testing.T) {
	var cfg FinanceConfig
	cfg.SetDefaults()
	if cfg.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", cfg.Currency)
	}
	if len(cfg.Categories) != len(DefaultCategories) {
		t.Errorf("Categories = %v, want defaults", cfg.Categories)
	}
	cfg.Categories[0] = "changed"
	if DefaultCategories[0] == "changed" {
		t.Error("SetDefaults() aliased DefaultCategories")
	}
}
