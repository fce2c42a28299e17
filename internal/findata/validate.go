package findata

import (
	"log/slog"
	"math"
)

// SanitationReport summarises what Sanitize changed or dropped.
type SanitationReport struct {
	RepairedValues  int
	ExcludedRecords int
}

// Sanitize returns a copy of the dataset with non-finite numeric fields
// zeroed and records missing required identifiers dropped. Analytics assume
// finite inputs, so this runs before any analysis pass.
func Sanitize(ds Dataset, logger *slog.Logger) (Dataset, SanitationReport) {
	var rep SanitationReport

	fix := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			rep.RepairedValues++
			return 0
		}
		return v
	}

	out := ds
	out.Transactions = make([]Transaction, 0, len(ds.Transactions))
	for _, tx := range ds.Transactions {
		if tx.ID == "" || tx.Date.IsZero() {
			rep.ExcludedRecords++
			continue
		}
		tx.Amount = fix(tx.Amount)
		out.Transactions = append(out.Transactions, tx)
	}

	out.Accounts = make([]Account, 0, len(ds.Accounts))
	for _, acc := range ds.Accounts {
		if acc.ID == "" {
			rep.ExcludedRecords++
			continue
		}
		acc.Balance = fix(acc.Balance)
		out.Accounts = append(out.Accounts, acc)
	}

	out.Investments = make([]Investment, 0, len(ds.Investments))
	for _, inv := range ds.Investments {
		inv.CurrentValue = fix(inv.CurrentValue)
		inv.InvestedAmount = fix(inv.InvestedAmount)
		out.Investments = append(out.Investments, inv)
	}

	out.Liabilities = make([]Liability, 0, len(ds.Liabilities))
	for _, l := range ds.Liabilities {
		if l.ID == "" {
			rep.ExcludedRecords++
			continue
		}
		l.Balance = fix(l.Balance)
		l.InterestRate = fix(l.InterestRate)
		l.MinimumPayment = fix(l.MinimumPayment)
		out.Liabilities = append(out.Liabilities, l)
	}

	out.Assets = make([]Asset, 0, len(ds.Assets))
	for _, a := range ds.Assets {
		a.Value = fix(a.Value)
		out.Assets = append(out.Assets, a)
	}

	if logger != nil && (rep.RepairedValues > 0 || rep.ExcludedRecords > 0) {
		logger.Warn("dataset sanitized",
			"repaired_values", rep.RepairedValues,
			"excluded_records", rep.ExcludedRecords)
	}
	return out, rep
}
