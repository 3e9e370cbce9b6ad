package scoring

import "fmt"

// Config is the scoring section of a model manifest. Omitted parts fall
// back to the built-in tables.
type Config struct {
	Pillars      map[Pillar][]Normalizer `yaml:"pillars,omitempty" json:"pillars"`
	StageWeights StageWeights            `yaml:"stage_weights,omitempty" json:"stage_weights"`
	VerdictBands Bands                   `yaml:"verdict_bands,omitempty" json:"verdict_bands"`
}

// Engine bundles the pillar calculator with the verdict table.
type Engine struct {
	*Calculator
	bands Bands
}

// Build fills defaults, validates and returns a ready engine.
func (c Config) Build() (*Engine, error) {
	if len(c.Pillars) == 0 {
		c.Pillars = DefaultPillars()
	}
	if len(c.StageWeights) == 0 {
		c.StageWeights = DefaultStageWeights()
	}
	if len(c.VerdictBands) == 0 {
		c.VerdictBands = DefaultBands()
	}

	calc, err := NewCalculator(c.Pillars, c.StageWeights)
	if err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}
	if err := c.VerdictBands.Validate(); err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}
	return &Engine{Calculator: calc, bands: c.VerdictBands}, nil
}

// Default returns an engine built from the built-in tables.
func Default() *Engine {
	engine, err := Config{}.Build()
	if err != nil {
		panic(err)
	}
	return engine
}

// Classify bands p against the engine's verdict table.
func (e *Engine) Classify(p float64) (Verdict, Strength) {
	return e.bands.Classify(p)
}

// Bands exposes the verdict table.
func (e *Engine) Bands() Bands {
	return e.bands
}

// DefaultPillars is the built-in pillar membership table.
func DefaultPillars() map[Pillar][]Normalizer {
	return map[Pillar][]Normalizer{
		Capital: {
			{Feature: "total_capital_raised_usd", Rule: RuleLog, Min: 1e5, Max: 1e8},
			{Feature: "cash_on_hand_usd", Rule: RuleLog, Min: 1e4, Max: 1e8},
			{Feature: "runway_months", Rule: RuleMinMax, Min: 0, Max: 24},
			{Feature: "annual_revenue_run_rate", Rule: RuleLog, Min: 1e4, Max: 1e8},
			{Feature: "revenue_growth_rate_percent", Rule: RuleMinMax, Min: 0, Max: 300},
			{Feature: "gross_margin_percent", Rule: RuleMinMax, Min: 0, Max: 100},
			{Feature: "burn_multiple", Rule: RuleInverse, Min: 0, Max: 5},
			{Feature: "ltv_cac_ratio", Rule: RuleMinMax, Min: 0, Max: 5},
			{Feature: "investor_tier_primary", Rule: RuleLookup, Lookup: map[string]float64{
				"tier_1": 1, "tier_2": 0.7, "tier_3": 0.4, "angel": 0.3, "none": 0,
			}},
			{Feature: "has_debt", Rule: RuleInverse, Min: 0, Max: 1},
		},
		Advantage: {
			{Feature: "patent_count", Rule: RuleMinMax, Min: 0, Max: 10},
			{Feature: "network_effects_present", Rule: RuleMinMax, Min: 0, Max: 1},
			{Feature: "has_data_moat", Rule: RuleMinMax, Min: 0, Max: 1},
			{Feature: "regulatory_advantage_present", Rule: RuleMinMax, Min: 0, Max: 1},
			{Feature: "tech_differentiation_score", Rule: RuleMinMax, Min: 1, Max: 5},
			{Feature: "switching_cost_score", Rule: RuleMinMax, Min: 1, Max: 5},
			{Feature: "brand_strength_score", Rule: RuleMinMax, Min: 1, Max: 5},
			{Feature: "scalability_score", Rule: RuleMinMax, Min: 1, Max: 5},
			{Feature: "product_retention_30d", Rule: RuleMinMax, Min: 0, Max: 1},
			{Feature: "product_retention_90d", Rule: RuleMinMax, Min: 0, Max: 1},
			{Feature: "product_stage", Rule: RuleLookup, Lookup: map[string]float64{
				"concept": 0, "mvp": 0.25, "beta": 0.5, "launched": 0.75, "growth": 1,
			}},
		},
		Market: {
			{Feature: "tam_size_usd", Rule: RuleLog, Min: 1e8, Max: 1e11},
			{Feature: "sam_size_usd", Rule: RuleLog, Min: 1e7, Max: 1e10},
			{Feature: "som_size_usd", Rule: RuleLog, Min: 1e6, Max: 1e9},
			{Feature: "market_growth_rate_percent", Rule: RuleMinMax, Min: 0, Max: 50},
			{Feature: "customer_count", Rule: RuleLog, Min: 1, Max: 1e4},
			{Feature: "customer_concentration_percent", Rule: RuleInverse, Min: 0, Max: 100},
			{Feature: "user_growth_rate_percent", Rule: RuleMinMax, Min: 0, Max: 200},
			{Feature: "net_dollar_retention_percent", Rule: RuleMinMax, Min: 50, Max: 150},
			{Feature: "competition_intensity", Rule: RuleInverse, Min: 1, Max: 5},
			{Feature: "dau_mau_ratio", Rule: RuleMinMax, Min: 0, Max: 1},
		},
		People: {
			{Feature: "founders_count", Rule: RuleMinMax, Min: 1, Max: 4},
			{Feature: "team_size_full_time", Rule: RuleLog, Min: 1, Max: 200},
			{Feature: "years_experience_avg", Rule: RuleMinMax, Min: 0, Max: 20},
			{Feature: "domain_expertise_years_avg", Rule: RuleMinMax, Min: 0, Max: 15},
			{Feature: "prior_startup_experience_count", Rule: RuleMinMax, Min: 0, Max: 3},
			{Feature: "prior_successful_exits_count", Rule: RuleMinMax, Min: 0, Max: 2},
			{Feature: "board_advisor_experience_score", Rule: RuleMinMax, Min: 1, Max: 5},
			{Feature: "advisors_count", Rule: RuleMinMax, Min: 0, Max: 6},
			{Feature: "team_diversity_percent", Rule: RuleMinMax, Min: 0, Max: 50},
			{Feature: "key_person_dependency", Rule: RuleInverse, Min: 0, Max: 1},
		},
	}
}
