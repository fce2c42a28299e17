// Package privacy implements per-category, per-access-type data permissions
// with default derivation, expiry handling, audit logging, and
// permission-aware dataset filtering.
package privacy

import "time"

// Level is a permission level for a data category.
type Level string

// Permission levels, least to most permissive.
const (
	LevelNone     Level = "none"
	LevelReadOnly Level = "read_only"
	LevelLimited  Level = "limited"
	LevelFull     Level = "full"
	LevelAdmin    Level = "admin"
)

// AccessType is a kind of data access that can be granted per category.
type AccessType string

// Access types.
const (
	AccessView    AccessType = "view"
	AccessAnalyze AccessType = "analyze"
	AccessExport  AccessType = "export"
	AccessDelete  AccessType = "delete"
	AccessShare   AccessType = "share"
)

// Shape describes the type-correct empty value a category takes when its
// data is absent or denied.
type Shape int

// Category data shapes.
const (
	ShapeList Shape = iota
	ShapeMap
)

// Category describes a data category in the fixed registry.
type Category struct {
	ID               string
	Name             string
	DisplayName      string
	Description      string
	SensitivityLevel int // 1-5
	DataTypes        []string
	RequiredForBasic bool
	RetentionDays    int
	Shape            Shape
}

// Setting is one category's permission state for a user.
type Setting struct {
	CategoryID  string
	Level       Level
	AccessTypes map[AccessType]struct{}
	GrantedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   *time.Time
}

// Expired reports whether the setting has an expiry in the past relative to now.
func (s Setting) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// Allows reports whether the access type is in the setting's grant set.
func (s Setting) Allows(access AccessType) bool {
	_, ok := s.AccessTypes[access]
	return ok
}

// PrivacyLevel is a coarse user preference band.
type PrivacyLevel string

// Privacy levels.
const (
	PrivacyBasic    PrivacyLevel = "basic"
	PrivacyStandard PrivacyLevel = "standard"
	PrivacyStrict   PrivacyLevel = "strict"
)

// Profile is the complete privacy state for one user.
type Profile struct {
	UserID           string
	Permissions      map[string]Setting
	PrivacyLevel     PrivacyLevel
	DataMinimization bool
	ConsentTimestamp time.Time
	LastUpdated      time.Time
}

// accessSet builds an immutable-by-convention access-type set.
func accessSet(types ...AccessType) map[AccessType]struct{} {
	set := make(map[AccessType]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

// DefaultSetting derives a category's initial permission from its
// sensitivity and whether it is required for basic function:
// required categories get Limited{view,analyze}; sensitivity >= 4 gets
// None; everything else gets ReadOnly{view}.
func DefaultSetting(cat Category, now time.Time) Setting {
	var (
		level Level
		types map[AccessType]struct{}
	)
	switch {
	case cat.RequiredForBasic:
		level = LevelLimited
		types = accessSet(AccessView, AccessAnalyze)
	case cat.SensitivityLevel >= 4:
		level = LevelNone
		types = accessSet()
	default:
		level = LevelReadOnly
		types = accessSet(AccessView)
	}
	return Setting{
		CategoryID:  cat.ID,
		Level:       level,
		AccessTypes: types,
		GrantedAt:   now,
		UpdatedAt:   now,
	}
}

// Registry returns the fixed, ordered category registry. Filtering always
// iterates this list, never the keys of an incoming dataset.
func Registry() []Category {
	return registry
}

// CategoryByID looks up a registry entry.
func CategoryByID(id string) (Category, bool) {
	for _, cat := range registry {
		if cat.ID == id {
			return cat, true
		}
	}
	return Category{}, false
}

var registry = []Category{
	{
		ID:               "transactions",
		Name:             "transactions",
		DisplayName:      "Financial Transactions",
		Description:      "All financial transactions including income, expenses, and transfers",
		SensitivityLevel: 4,
		DataTypes:        []string{"amounts", "dates", "descriptions", "categories", "merchant_info"},
		RequiredForBasic: true,
		RetentionDays:    2555,
		Shape:            ShapeList,
	},
	{
		ID:               "accounts",
		Name:             "accounts",
		DisplayName:      "Account Information",
		Description:      "Bank accounts, credit cards, and account balances",
		SensitivityLevel: 5,
		DataTypes:        []string{"account_numbers", "balances", "bank_details", "account_types"},
		RequiredForBasic: true,
		RetentionDays:    2555,
		Shape:            ShapeList,
	},
	{
		ID:               "investments",
		Name:             "investments",
		DisplayName:      "Investment Portfolio",
		Description:      "Investment holdings, performance, and portfolio data",
		SensitivityLevel: 4,
		DataTypes:        []string{"holdings", "valuations", "performance", "risk_profiles"},
		RetentionDays:    2555,
		Shape:            ShapeList,
	},
	{
		ID:               "liabilities",
		Name:             "liabilities",
		DisplayName:      "Loans & Debts",
		Description:      "Loan information, debt obligations, and payment schedules",
		SensitivityLevel: 5,
		DataTypes:        []string{"loan_amounts", "interest_rates", "payment_schedules", "debt_details"},
		RetentionDays:    2555,
		Shape:            ShapeList,
	},
	{
		ID:               "assets",
		Name:             "assets",
		DisplayName:      "Asset Information",
		Description:      "Property, vehicles, and other valuable assets",
		SensitivityLevel: 3,
		DataTypes:        []string{"valuations", "ownership_details", "asset_types"},
		RetentionDays:    2555,
		Shape:            ShapeList,
	},
	{
		ID:               "credit_score",
		Name:             "credit_score",
		DisplayName:      "Credit Score & History",
		Description:      "Credit scores, credit history, and credit monitoring data",
		SensitivityLevel: 5,
		DataTypes:        []string{"credit_scores", "credit_history", "credit_inquiries"},
		RetentionDays:    2555,
		Shape:            ShapeMap,
	},
	{
		ID:               "epf_balance",
		Name:             "epf_balance",
		DisplayName:      "EPF/Retirement Funds",
		Description:      "Employee Provident Fund and retirement account information",
		SensitivityLevel: 4,
		DataTypes:        []string{"balances", "contributions", "employer_details"},
		RetentionDays:    2555,
		Shape:            ShapeMap,
	},
	{
		ID:               "spending_patterns",
		Name:             "spending_trends",
		DisplayName:      "Spending Analysis",
		Description:      "Analyzed spending patterns, trends, and categorizations",
		SensitivityLevel: 3,
		DataTypes:        []string{"spending_patterns", "trend_analysis", "category_breakdown"},
		RequiredForBasic: true,
		RetentionDays:    2555,
		Shape:            ShapeList,
	},
	{
		ID:               "financial_insights",
		Name:             "dashboard_insights",
		DisplayName:      "Financial Insights",
		Description:      "Generated financial insights, recommendations, and predictions",
		SensitivityLevel: 3,
		DataTypes:        []string{"insights", "recommendations", "predictions", "analysis_results"},
		RetentionDays:    2555,
		Shape:            ShapeList,
	},
	{
		ID:               "personal_profile",
		Name:             "personal_info",
		DisplayName:      "Personal Information",
		Description:      "Basic personal details and preferences",
		SensitivityLevel: 2,
		DataTypes:        []string{"name", "contact_info", "preferences", "demographics"},
		RequiredForBasic: true,
		RetentionDays:    2555,
		Shape:            ShapeList,
	},
}
