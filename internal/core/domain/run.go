package domain

import "time"

// RunState tracks a detection run through its pipeline stages.
type RunState string

const (
	RunPending        RunState = "pending"
	RunRulesEvaluated RunState = "rules_evaluated"
	RunContextBuilt   RunState = "context_built"
	RunModelEvaluated RunState = "model_evaluated"
	RunModelSkipped   RunState = "model_skipped"
	RunReconciled     RunState = "reconciled"
	RunDone           RunState = "done"
)

// DetectionRun is the observability record of one detection pass. It is not
// a domain entity with its own lifecycle; it exists so downstream consumers
// can surface "detection is partial" without treating it as an outage.
type DetectionRun struct {
	ID                string    `json:"id"`
	ContractID        string    `json:"contract_id"`
	StartedAt         time.Time `json:"started_at"`
	State             RunState  `json:"state"`
	RuleFindingCount  int       `json:"rule_finding_count"`
	ModelFindingCount int       `json:"model_finding_count"`
	FinalFindingCount int       `json:"final_finding_count"`
	Degraded          bool      `json:"degraded"`
	Warnings          []string  `json:"warnings,omitempty"`
}

// DetectionResult is the full outcome of a run: the reconciled findings plus
// the run record and a severity breakdown for reporting.
type DetectionResult struct {
	Run        DetectionRun     `json:"run"`
	Findings   []Finding        `json:"findings"`
	BySeverity map[Severity]int `json:"findings_by_severity"`
}
