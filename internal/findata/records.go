// Package findata defines the financial dataset records that flow through
// permission filtering and analytics, plus dataset sanitation.
package findata

import "time"

// Transaction is a single financial transaction. Negative amounts are
// expenses, positive amounts are income.
type Transaction struct {
	ID          string    `json:"id"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
	Category    string    `json:"category"`
	Merchant    string    `json:"merchant,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Account is a bank account, card, or wallet.
type Account struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Type    string  `json:"type"`
	Balance float64 `json:"balance"`
}

// Investment is a single portfolio holding.
type Investment struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	CurrentValue   float64 `json:"current_value"`
	InvestedAmount float64 `json:"invested_amount"`
}

// Liability is a loan or other debt obligation.
type Liability struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Balance        float64 `json:"balance"`
	InterestRate   float64 `json:"interest_rate"`
	MinimumPayment float64 `json:"minimum_payment"`
}

// Asset is a non-account asset such as property or a vehicle.
type Asset struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// Dataset is the raw per-user financial data keyed by category.
type Dataset struct {
	Transactions      []Transaction    `json:"transactions"`
	Accounts          []Account        `json:"accounts"`
	Investments       []Investment     `json:"investments"`
	Liabilities       []Liability      `json:"liabilities"`
	Assets            []Asset          `json:"assets"`
	CreditScore       map[string]any   `json:"credit_score"`
	EPFBalance        map[string]any   `json:"epf_balance"`
	SpendingPatterns  []map[string]any `json:"spending_patterns"`
	FinancialInsights []map[string]any `json:"financial_insights"`
	PersonalProfile   []map[string]any `json:"personal_profile"`
}

// Has reports whether the dataset carries any data for the category.
func (d Dataset) Has(categoryID string) bool {
	switch categoryID {
	case "transactions":
		return len(d.Transactions) > 0
	case "accounts":
		return len(d.Accounts) > 0
	case "investments":
		return len(d.Investments) > 0
	case "liabilities":
		return len(d.Liabilities) > 0
	case "assets":
		return len(d.Assets) > 0
	case "credit_score":
		return len(d.CreditScore) > 0
	case "epf_balance":
		return len(d.EPFBalance) > 0
	case "spending_patterns":
		return len(d.SpendingPatterns) > 0
	case "financial_insights":
		return len(d.FinancialInsights) > 0
	case "personal_profile":
		return len(d.PersonalProfile) > 0
	}
	return false
}

// AccessOutcome records how one category fared during filtering.
type AccessOutcome string

// Filtering outcomes per category.
const (
	OutcomeGranted AccessOutcome = "granted"
	OutcomeDenied  AccessOutcome = "denied"
	OutcomeNoData  AccessOutcome = "no_data"
)

// FilterMetadata describes a filtering pass over a dataset.
type FilterMetadata struct {
	AccessLog        map[string]AccessOutcome `json:"access_log"`
	FilteredAt       time.Time                `json:"filtered_at"`
	DataMinimization bool                     `json:"data_minimization"`
	PrivacyLevel     string                   `json:"privacy_level"`
}

// FilteredDataset is the permission-filtered view of a Dataset. Categories
// the user cannot see are present with type-correct empty values.
type FilteredDataset struct {
	Dataset
	Metadata FilterMetadata `json:"privacy_metadata"`
}
