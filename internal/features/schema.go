package features

// Kind describes how a canonical feature is typed and coerced
type Kind string

const (
	KindNumeric     Kind = "numeric"
	KindInteger     Kind = "integer"
	KindBoolean     Kind = "boolean"
	KindCategorical Kind = "categorical"
)

// Group is the semantic group a feature belongs to in the catalog
type Group string

const (
	GroupCapital   Group = "capital"
	GroupAdvantage Group = "advantage"
	GroupMarket    Group = "market"
	GroupPeople    Group = "people"
	GroupProduct   Group = "product"
)

// Unit tells the converter how to interpret percent-style strings
type Unit string

const (
	UnitNone     Unit = ""
	UnitPercent  Unit = "percent"  // 0-100 scale
	UnitFraction Unit = "fraction" // 0-1 scale
)

// Feature describes one canonical input field
type Feature struct {
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	Group      Group    `json:"group"`
	Unit       Unit     `json:"unit,omitempty"`
	Default    float64  `json:"default"`
	Categories []string `json:"categories,omitempty"`
}

// DefaultCategory returns the category name encoded by the default code.
func (f Feature) DefaultCategory() string {
	if f.Kind != KindCategorical || len(f.Categories) == 0 {
		return ""
	}
	return f.Categories[int(f.Default)]
}

// CategoryCode returns the index of category in the feature's category list.
func (f Feature) CategoryCode(category string) (int, bool) {
	for i, c := range f.Categories {
		if c == category {
			return i, true
		}
	}
	return 0, false
}

// Funding stages, ordered from earliest to latest.
const (
	StagePreSeed = "pre_seed"
	StageSeed    = "seed"
	StageSeriesA = "series_a"
	StageSeriesB = "series_b"
	StageSeriesC = "series_c"
)

// Stages lists every supported funding stage in order.
var Stages = []string{StagePreSeed, StageSeed, StageSeriesA, StageSeriesB, StageSeriesC}

// FundingStage is the feature that selects the stage weight profile.
const FundingStage = "funding_stage"

var (
	investorTiers = []string{"none", "angel", "tier_3", "tier_2", "tier_1"}
	productStages = []string{"concept", "mvp", "beta", "launched", "growth"}
	sectors       = []string{
		"saas", "fintech", "healthtech", "ecommerce", "marketplace", "ai_ml",
		"deeptech", "consumer", "enterprise", "edtech", "other",
	}
)

// catalog is kept in the column order the legacy model artifacts were trained on.
// Lookups elsewhere are always by name.
var catalog = []Feature{
	// Capital
	{Name: FundingStage, Kind: KindCategorical, Group: GroupCapital, Default: 1, Categories: Stages},
	{Name: "total_capital_raised_usd", Kind: KindNumeric, Group: GroupCapital, Default: 1_000_000},
	{Name: "cash_on_hand_usd", Kind: KindNumeric, Group: GroupCapital, Default: 500_000},
	{Name: "monthly_burn_usd", Kind: KindNumeric, Group: GroupCapital, Default: 50_000},
	{Name: "runway_months", Kind: KindNumeric, Group: GroupCapital, Default: 12},
	{Name: "annual_revenue_run_rate", Kind: KindNumeric, Group: GroupCapital, Default: 0},
	{Name: "revenue_growth_rate_percent", Kind: KindNumeric, Group: GroupCapital, Unit: UnitPercent, Default: 0},
	{Name: "gross_margin_percent", Kind: KindNumeric, Group: GroupCapital, Unit: UnitPercent, Default: 50},
	{Name: "burn_multiple", Kind: KindNumeric, Group: GroupCapital, Default: 2},
	{Name: "ltv_cac_ratio", Kind: KindNumeric, Group: GroupCapital, Default: 1},
	{Name: "investor_tier_primary", Kind: KindCategorical, Group: GroupCapital, Default: 0, Categories: investorTiers},
	{Name: "has_debt", Kind: KindBoolean, Group: GroupCapital, Default: 0},

	// Advantage
	{Name: "patent_count", Kind: KindInteger, Group: GroupAdvantage, Default: 0},
	{Name: "network_effects_present", Kind: KindBoolean, Group: GroupAdvantage, Default: 0},
	{Name: "has_data_moat", Kind: KindBoolean, Group: GroupAdvantage, Default: 0},
	{Name: "regulatory_advantage_present", Kind: KindBoolean, Group: GroupAdvantage, Default: 0},
	{Name: "tech_differentiation_score", Kind: KindInteger, Group: GroupAdvantage, Default: 3},
	{Name: "switching_cost_score", Kind: KindInteger, Group: GroupAdvantage, Default: 3},
	{Name: "brand_strength_score", Kind: KindInteger, Group: GroupAdvantage, Default: 3},
	{Name: "scalability_score", Kind: KindInteger, Group: GroupAdvantage, Default: 3},

	// Product
	{Name: "product_stage", Kind: KindCategorical, Group: GroupProduct, Default: 1, Categories: productStages},
	{Name: "product_retention_30d", Kind: KindNumeric, Group: GroupProduct, Unit: UnitFraction, Default: 0.5},
	{Name: "product_retention_90d", Kind: KindNumeric, Group: GroupProduct, Unit: UnitFraction, Default: 0.3},
	{Name: "dau_mau_ratio", Kind: KindNumeric, Group: GroupProduct, Unit: UnitFraction, Default: 0.2},

	// Market
	{Name: "sector", Kind: KindCategorical, Group: GroupMarket, Default: 10, Categories: sectors},
	{Name: "tam_size_usd", Kind: KindNumeric, Group: GroupMarket, Default: 1_000_000_000},
	{Name: "sam_size_usd", Kind: KindNumeric, Group: GroupMarket, Default: 100_000_000},
	{Name: "som_size_usd", Kind: KindNumeric, Group: GroupMarket, Default: 10_000_000},
	{Name: "market_growth_rate_percent", Kind: KindNumeric, Group: GroupMarket, Unit: UnitPercent, Default: 10},
	{Name: "customer_count", Kind: KindInteger, Group: GroupMarket, Default: 10},
	{Name: "customer_concentration_percent", Kind: KindNumeric, Group: GroupMarket, Unit: UnitPercent, Default: 50},
	{Name: "user_growth_rate_percent", Kind: KindNumeric, Group: GroupMarket, Unit: UnitPercent, Default: 0},
	{Name: "net_dollar_retention_percent", Kind: KindNumeric, Group: GroupMarket, Unit: UnitPercent, Default: 100},
	{Name: "competition_intensity", Kind: KindInteger, Group: GroupMarket, Default: 3},
	{Name: "competitors_named_count", Kind: KindInteger, Group: GroupMarket, Default: 5},

	// People
	{Name: "founders_count", Kind: KindInteger, Group: GroupPeople, Default: 2},
	{Name: "team_size_full_time", Kind: KindInteger, Group: GroupPeople, Default: 5},
	{Name: "years_experience_avg", Kind: KindNumeric, Group: GroupPeople, Default: 5},
	{Name: "domain_expertise_years_avg", Kind: KindNumeric, Group: GroupPeople, Default: 3},
	{Name: "prior_startup_experience_count", Kind: KindInteger, Group: GroupPeople, Default: 0},
	{Name: "prior_successful_exits_count", Kind: KindInteger, Group: GroupPeople, Default: 0},
	{Name: "board_advisor_experience_score", Kind: KindInteger, Group: GroupPeople, Default: 3},
	{Name: "advisors_count", Kind: KindInteger, Group: GroupPeople, Default: 2},
	{Name: "team_diversity_percent", Kind: KindNumeric, Group: GroupPeople, Unit: UnitPercent, Default: 30},
	{Name: "key_person_dependency", Kind: KindBoolean, Group: GroupPeople, Default: 1},
}

// Count is the number of canonical features.
const Count = 45

var index = func() map[string]int {
	m := make(map[string]int, len(catalog))
	for i, f := range catalog {
		m[f.Name] = i
	}
	return m
}()

// Catalog returns a copy of the canonical feature catalog in legacy column order.
func Catalog() []Feature {
	out := make([]Feature, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns the canonical feature names in legacy column order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, f := range catalog {
		names[i] = f.Name
	}
	return names
}

// Lookup finds a canonical feature by name.
func Lookup(name string) (Feature, bool) {
	i, ok := index[name]
	if !ok {
		return Feature{}, false
	}
	return catalog[i], true
}

// IsCanonical reports whether name is part of the canonical catalog.
func IsCanonical(name string) bool {
	_, ok := index[name]
	return ok
}

// IsStage reports whether stage is a supported funding stage.
func IsStage(stage string) bool {
	for _, s := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}
