package privacy

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/mintelli/mintelli/internal/findata"
)

// DefaultMinimizationCap bounds how many transactions a minimized view keeps.
const DefaultMinimizationCap = 50

// Filter produces permission-filtered dataset views. It always walks the
// fixed category registry, so a category absent from the input still shows
// up in the access log.
type Filter struct {
	gate   *Gate
	logger *slog.Logger
	cap    int
	clock  func() time.Time
}

// NewFilter wires a dataset filter.
func NewFilter(gate *Gate, logger *slog.Logger, minimizationCap int) *Filter {
	if minimizationCap <= 0 {
		minimizationCap = DefaultMinimizationCap
	}
	return &Filter{
		gate:   gate,
		logger: logger,
		cap:    minimizationCap,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source, for tests.
func (f *Filter) WithClock(clock func() time.Time) *Filter {
	f.clock = clock
	return f
}

// Apply filters the dataset down to what the profile's view permissions
// allow. Denied and absent categories come back as type-correct empty
// values, and every granted access is written to the audit trail.
func (f *Filter) Apply(profile Profile, ds findata.Dataset) findata.FilteredDataset {
	out := findata.FilteredDataset{
		Metadata: findata.FilterMetadata{
			AccessLog:        make(map[string]findata.AccessOutcome, len(registry)),
			FilteredAt:       f.clock(),
			DataMinimization: profile.DataMinimization,
			PrivacyLevel:     string(profile.PrivacyLevel),
		},
	}

	for _, cat := range registry {
		if !ds.Has(cat.ID) {
			out.Metadata.AccessLog[cat.ID] = findata.OutcomeNoData
			continue
		}
		if !f.gate.CheckWithProfile(profile, cat.ID, AccessView, true) {
			out.Metadata.AccessLog[cat.ID] = findata.OutcomeDenied
			continue
		}
		f.copyCategory(&out.Dataset, ds, profile, cat)
		out.Metadata.AccessLog[cat.ID] = findata.OutcomeGranted
	}

	granted := 0
	for _, outcome := range out.Metadata.AccessLog {
		if outcome == findata.OutcomeGranted {
			granted++
		}
	}
	f.logger.Debug("dataset filtered",
		"user_id", profile.UserID,
		"granted", granted,
		"categories", len(out.Metadata.AccessLog))
	return out
}

func (f *Filter) copyCategory(dst *findata.Dataset, src findata.Dataset, profile Profile, cat Category) {
	minimize := profile.DataMinimization && profile.Permissions[cat.ID].Level == LevelLimited

	switch cat.ID {
	case "transactions":
		if minimize {
			dst.Transactions = f.minimizeTransactions(src.Transactions)
		} else {
			dst.Transactions = append([]findata.Transaction(nil), src.Transactions...)
		}
	case "accounts":
		if minimize {
			dst.Accounts = minimizeAccounts(src.Accounts)
		} else {
			dst.Accounts = append([]findata.Account(nil), src.Accounts...)
		}
	case "investments":
		dst.Investments = append([]findata.Investment(nil), src.Investments...)
	case "liabilities":
		dst.Liabilities = append([]findata.Liability(nil), src.Liabilities...)
	case "assets":
		dst.Assets = append([]findata.Asset(nil), src.Assets...)
	case "credit_score":
		dst.CreditScore = cloneDoc(src.CreditScore)
	case "epf_balance":
		dst.EPFBalance = cloneDoc(src.EPFBalance)
	case "spending_patterns":
		dst.SpendingPatterns = cloneDocs(src.SpendingPatterns)
	case "financial_insights":
		dst.FinancialInsights = cloneDocs(src.FinancialInsights)
	case "personal_profile":
		dst.PersonalProfile = cloneDocs(src.PersonalProfile)
	}
}

// minimizeTransactions strips merchant and description, truncates dates to
// the day, and keeps only the most recent entries up to the cap.
func (f *Filter) minimizeTransactions(txs []findata.Transaction) []findata.Transaction {
	sorted := append([]findata.Transaction(nil), txs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })
	if len(sorted) > f.cap {
		sorted = sorted[:f.cap]
	}
	out := make([]findata.Transaction, len(sorted))
	for i, tx := range sorted {
		out[i] = findata.Transaction{
			ID:       tx.ID,
			Amount:   tx.Amount,
			Category: tx.Category,
			Date:     tx.Date.Truncate(24 * time.Hour),
		}
	}
	return out
}

// minimizeAccounts masks account names down to their last four characters
// and rounds balances to the nearest hundred.
func minimizeAccounts(accounts []findata.Account) []findata.Account {
	out := make([]findata.Account, len(accounts))
	for i, acc := range accounts {
		out[i] = findata.Account{
			ID:      acc.ID,
			Name:    maskName(acc.Name),
			Type:    acc.Type,
			Balance: math.Round(acc.Balance/100) * 100,
		}
	}
	return out
}

func maskName(name string) string {
	const visible = 4
	runes := []rune(name)
	if len(runes) <= visible {
		return "****"
	}
	return "****" + string(runes[len(runes)-visible:])
}

func cloneDoc(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

func cloneDocs(docs []map[string]any) []map[string]any {
	if docs == nil {
		return nil
	}
	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = cloneDoc(d)
	}
	return out
}
