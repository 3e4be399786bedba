package usecase

import (
	"fmt"

	"github.com/contraq/leakage-engine/internal/core/domain"
)

// maxImpactShare caps any single finding's estimated impact at a share of
// the total contract value; no one clause plausibly leaks more than that.
const maxImpactShare = 0.30

// estimateImpact computes a finding's financial impact from contract value
// and duration. Every numeric input used is recorded as an assumption
// string; an impact without recorded assumptions violates the evaluator's
// contract, so the returned slice is never empty.
func estimateImpact(est domain.ImpactEstimator, meta domain.ContractMetadata, defaults ImpactDefaults) (*domain.EstimatedImpact, []string) {
	currency := meta.Currency
	if currency == "" {
		currency = "USD"
	}

	value := meta.ContractValue
	var assumptions []string
	if value <= 0 {
		assumptions = append(assumptions, "contract value unknown, assumed 0")
	}

	param := func(key string, fallback float64) float64 {
		if v, ok := est.Parameters[key]; ok {
			return v
		}
		return fallback
	}

	impact := &domain.EstimatedImpact{Currency: currency, CalculationMethod: string(est.Method)}

	switch est.Method {
	case domain.ImpactInflationBased:
		rate := param("inflation_rate", defaults.InflationRate)
		years := param("time_period", meta.DurationYears())
		impact.Amount = value * rate * years
		assumptions = append(assumptions,
			fmt.Sprintf("assumed %.1f%% annual inflation", rate*100),
			fmt.Sprintf("assumed %.1f years of remaining term", years),
		)

	case domain.ImpactPercentageOfValue:
		pct := param("risk_percentage", 0.10)
		impact.Amount = value * pct
		assumptions = append(assumptions,
			fmt.Sprintf("assumed %.1f%% of contract value at risk", pct*100),
		)

	case domain.ImpactRenewalBased:
		increase := param("expected_increase", 0.05)
		probability := param("renewal_probability", 0.8)
		impact.Amount = value * increase * probability
		assumptions = append(assumptions,
			fmt.Sprintf("assumed %.1f%% expected increase at renewal", increase*100),
			fmt.Sprintf("assumed %.0f%% renewal probability", probability*100),
		)

	case domain.ImpactOpportunityCost:
		months := param("months_at_risk", 6)
		monthly := 0.0
		if value > 0 {
			monthly = value / 12
		}
		impact.Amount = monthly * months
		assumptions = append(assumptions,
			fmt.Sprintf("assumed %.0f months of exposure", months),
			"assumed uniform monthly contract value",
		)
	}

	if value > 0 {
		impact.Confidence = 0.7
		if cap := value * maxImpactShare; impact.Amount > cap {
			impact.Amount = cap
			impact.Confidence = 0.3
			assumptions = append(assumptions,
				fmt.Sprintf("impact capped at %.0f%% of contract value", maxImpactShare*100),
			)
		}
	} else {
		impact.Confidence = 0.3
	}

	return impact, assumptions
}
