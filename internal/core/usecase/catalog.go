package usecase

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/contraq/leakage-engine/internal/core/domain"
)

// ImpactDefaults are catalog-wide fallbacks for impact estimation inputs.
type ImpactDefaults struct {
	InflationRate float64
}

// Catalog is a validated, ordered set of detection rules. Loaded once per
// process lifetime; immutable at evaluation time.
type Catalog struct {
	Rules    []domain.Rule
	Defaults ImpactDefaults
}

func (c *Catalog) RuleByID(id string) (domain.Rule, bool) {
	for _, r := range c.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Rule{}, false
}

type rawImpact struct {
	Method     string             `yaml:"method"`
	Parameters map[string]float64 `yaml:"parameters"`
}

type rawTrigger struct {
	ClauseTypes       []string `yaml:"clause_types"`
	RiskSignals       []string `yaml:"risk_signals"`
	Contains          []string `yaml:"contains"`
	NotContains       []string `yaml:"not_contains"`
	Keywords          []string `yaml:"keywords"`
	MinDurationMonths int      `yaml:"min_duration_months"`
	MinContractValue  float64  `yaml:"min_contract_value"`
}

type rawRule struct {
	ID                string      `yaml:"id"`
	Category          string      `yaml:"category"`
	Severity          string      `yaml:"severity"`
	Enabled           *bool       `yaml:"enabled"`
	Repeatable        bool        `yaml:"repeatable"`
	Trigger           *rawTrigger `yaml:"trigger"`
	Explanation       string      `yaml:"explanation"`
	RecommendedAction string      `yaml:"recommended_action"`
	Impact            *rawImpact  `yaml:"impact_estimator"`
}

type rawCatalog struct {
	Config struct {
		ImpactDefaults struct {
			InflationRate float64 `yaml:"inflation_rate"`
		} `yaml:"impact_defaults"`
	} `yaml:"config"`
	Rules []rawRule `yaml:"rules"`
}

var validImpactMethods = map[domain.ImpactMethod]struct{}{
	domain.ImpactInflationBased:    {},
	domain.ImpactPercentageOfValue: {},
	domain.ImpactRenewalBased:      {},
	domain.ImpactOpportunityCost:   {},
}

// LoadCatalog parses a YAML rule catalog. Parsing is all-or-nothing per
// rule: a malformed rule is skipped with a logged warning so that one bad
// entry cannot silently disable detection for the whole catalog. Unknown
// fields are ignored for forward compatibility.
func LoadCatalog(r io.Reader, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var raw rawCatalog
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, domain.WrapError(domain.ErrRuleParse, "decode rule catalog", err)
	}

	defaults := ImpactDefaults{InflationRate: raw.Config.ImpactDefaults.InflationRate}
	if defaults.InflationRate <= 0 {
		defaults.InflationRate = 0.03
	}

	catalog := &Catalog{Defaults: defaults}
	for idx, rr := range raw.Rules {
		if rr.Enabled != nil && !*rr.Enabled {
			continue
		}
		rule, err := buildRule(rr)
		if err != nil {
			logger.Warn("rule_skipped",
				"rule_id", rr.ID,
				"index", idx,
				"error", err,
			)
			continue
		}
		catalog.Rules = append(catalog.Rules, rule)
	}

	logger.Info("rule_catalog_loaded", "rules", len(catalog.Rules), "skipped", len(raw.Rules)-len(catalog.Rules))
	return catalog, nil
}

// LoadCatalogFile loads a catalog from a file path.
func LoadCatalogFile(path string, logger *slog.Logger) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rule catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f, logger)
}

func buildRule(rr rawRule) (domain.Rule, error) {
	if strings.TrimSpace(rr.ID) == "" {
		return domain.Rule{}, domain.WrapError(domain.ErrRuleParse, "build rule", errors.New("missing id"))
	}
	if strings.TrimSpace(rr.Severity) == "" {
		return domain.Rule{}, domain.WrapError(domain.ErrRuleParse, rr.ID, errors.New("missing severity"))
	}
	sev := domain.Severity(strings.ToLower(strings.TrimSpace(rr.Severity)))
	if sev.Rank() == 0 {
		return domain.Rule{}, domain.WrapError(domain.ErrRuleParse, rr.ID, fmt.Errorf("unknown severity %q", rr.Severity))
	}
	if rr.Trigger == nil {
		return domain.Rule{}, domain.WrapError(domain.ErrRuleParse, rr.ID, errors.New("missing trigger"))
	}

	trigger, err := buildTrigger(*rr.Trigger)
	if err != nil {
		return domain.Rule{}, domain.WrapError(domain.ErrRuleParse, rr.ID, err)
	}

	rule := domain.Rule{
		ID:                rr.ID,
		Category:          domain.ParseCategory(rr.Category),
		Severity:          sev,
		Repeatable:        rr.Repeatable,
		Trigger:           trigger,
		Explanation:       strings.TrimSpace(rr.Explanation),
		RecommendedAction: strings.TrimSpace(rr.RecommendedAction),
	}
	if rule.Explanation == "" {
		return domain.Rule{}, domain.WrapError(domain.ErrRuleParse, rr.ID, errors.New("missing explanation"))
	}

	if rr.Impact != nil {
		method := domain.ImpactMethod(strings.ToLower(strings.TrimSpace(rr.Impact.Method)))
		if _, ok := validImpactMethods[method]; !ok {
			return domain.Rule{}, domain.WrapError(domain.ErrRuleParse, rr.ID, fmt.Errorf("unknown impact method %q", rr.Impact.Method))
		}
		rule.Impact = &domain.ImpactEstimator{
			Method:     method,
			Parameters: rr.Impact.Parameters,
		}
	}

	return rule, nil
}

func buildTrigger(rt rawTrigger) (domain.Trigger, error) {
	trigger := domain.Trigger{
		RiskSignals:       rt.RiskSignals,
		Contains:          rt.Contains,
		NotContains:       rt.NotContains,
		Keywords:          rt.Keywords,
		MinDurationMonths: rt.MinDurationMonths,
		MinContractValue:  rt.MinContractValue,
	}

	for _, t := range rt.ClauseTypes {
		ct := domain.ClauseType(strings.ToLower(strings.TrimSpace(t)))
		if !domain.KnownClauseType(ct) {
			return domain.Trigger{}, fmt.Errorf("unknown clause type %q", t)
		}
		trigger.ClauseTypes = append(trigger.ClauseTypes, ct)
	}

	if rt.MinDurationMonths < 0 {
		return domain.Trigger{}, fmt.Errorf("min_duration_months must be non-negative, got %d", rt.MinDurationMonths)
	}
	if rt.MinContractValue < 0 {
		return domain.Trigger{}, fmt.Errorf("min_contract_value must be non-negative, got %v", rt.MinContractValue)
	}

	if len(trigger.ClauseTypes) == 0 && len(trigger.RiskSignals) == 0 &&
		len(trigger.Contains) == 0 && len(trigger.NotContains) == 0 &&
		len(trigger.Keywords) == 0 && trigger.MinDurationMonths == 0 && trigger.MinContractValue == 0 {
		return domain.Trigger{}, errors.New("empty trigger")
	}

	return trigger, nil
}
