package findata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads raw per-user financial datasets.
type Repository interface {
	Load(ctx context.Context, userID string) (Dataset, error)
}

// PGRepository reads datasets from Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository wires a Postgres-backed dataset repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Load assembles the full dataset for a user. Missing categories come back
// as empty slices or maps, never as errors.
func (r *PGRepository) Load(ctx context.Context, userID string) (Dataset, error) {
	var ds Dataset

	rows, err := r.pool.Query(ctx, `
		SELECT id, amount, occurred_at, category, COALESCE(merchant, ''), COALESCE(description, '')
		FROM transactions WHERE user_id = $1 ORDER BY occurred_at DESC`, userID)
	if err != nil {
		return ds, fmt.Errorf("findata: load transactions: %w", err)
	}
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.Amount, &tx.Date, &tx.Category, &tx.Merchant, &tx.Description); err != nil {
			rows.Close()
			return ds, fmt.Errorf("findata: scan transaction: %w", err)
		}
		ds.Transactions = append(ds.Transactions, tx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ds, fmt.Errorf("findata: iterate transactions: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, name, type, balance FROM accounts WHERE user_id = $1`, userID)
	if err != nil {
		return ds, fmt.Errorf("findata: load accounts: %w", err)
	}
	for rows.Next() {
		var acc Account
		if err := rows.Scan(&acc.ID, &acc.Name, &acc.Type, &acc.Balance); err != nil {
			rows.Close()
			return ds, fmt.Errorf("findata: scan account: %w", err)
		}
		ds.Accounts = append(ds.Accounts, acc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ds, fmt.Errorf("findata: iterate accounts: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, name, type, current_value, invested_amount
		FROM investments WHERE user_id = $1`, userID)
	if err != nil {
		return ds, fmt.Errorf("findata: load investments: %w", err)
	}
	for rows.Next() {
		var inv Investment
		if err := rows.Scan(&inv.ID, &inv.Name, &inv.Type, &inv.CurrentValue, &inv.InvestedAmount); err != nil {
			rows.Close()
			return ds, fmt.Errorf("findata: scan investment: %w", err)
		}
		ds.Investments = append(ds.Investments, inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ds, fmt.Errorf("findata: iterate investments: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, name, type, balance, interest_rate, minimum_payment
		FROM liabilities WHERE user_id = $1`, userID)
	if err != nil {
		return ds, fmt.Errorf("findata: load liabilities: %w", err)
	}
	for rows.Next() {
		var l Liability
		if err := rows.Scan(&l.ID, &l.Name, &l.Type, &l.Balance, &l.InterestRate, &l.MinimumPayment); err != nil {
			rows.Close()
			return ds, fmt.Errorf("findata: scan liability: %w", err)
		}
		ds.Liabilities = append(ds.Liabilities, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ds, fmt.Errorf("findata: iterate liabilities: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT id, name, type, value FROM assets WHERE user_id = $1`, userID)
	if err != nil {
		return ds, fmt.Errorf("findata: load assets: %w", err)
	}
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Value); err != nil {
			rows.Close()
			return ds, fmt.Errorf("findata: scan asset: %w", err)
		}
		ds.Assets = append(ds.Assets, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ds, fmt.Errorf("findata: iterate assets: %w", err)
	}

	// Document-shaped categories live in a single jsonb table.
	rows, err = r.pool.Query(ctx, `
		SELECT category, payload FROM user_documents WHERE user_id = $1`, userID)
	if err != nil {
		return ds, fmt.Errorf("findata: load documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			category string
			payload  []byte
		)
		if err := rows.Scan(&category, &payload); err != nil {
			return ds, fmt.Errorf("findata: scan document: %w", err)
		}
		if err := ds.applyDocument(category, payload); err != nil {
			return ds, err
		}
	}
	if err := rows.Err(); err != nil {
		return ds, fmt.Errorf("findata: iterate documents: %w", err)
	}
	return ds, nil
}

func (d *Dataset) applyDocument(category string, payload []byte) error {
	var err error
	switch category {
	case "credit_score":
		err = json.Unmarshal(payload, &d.CreditScore)
	case "epf_balance":
		err = json.Unmarshal(payload, &d.EPFBalance)
	case "spending_patterns":
		err = json.Unmarshal(payload, &d.SpendingPatterns)
	case "financial_insights":
		err = json.Unmarshal(payload, &d.FinancialInsights)
	case "personal_profile":
		err = json.Unmarshal(payload, &d.PersonalProfile)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("findata: decode %s document: %w", category, err)
	}
	return nil
}
