package usecase

import (
	"fmt"
	"strings"

	"github.com/contraq/leakage-engine/internal/core/domain"
)

const maxPromptSummaryChars = 500

const detectionSystemPrompt = `You are an expert contract analyst specializing in commercial leakage detection.

Identify revenue leakage, unfavorable terms, and financial risks that simple
rule-based systems miss: implicit risks, cross-clause conflicts, missing
protections, one-sided terms, and hidden cost escalations.

Constraints:
- This is advisory-only, NOT legal advice.
- Base every finding ONLY on the clauses provided in the context. Reference
  clauses by their exact clause id.
- Only flag genuine issues with clear business impact.
- Return a JSON object only, no markdown and no free text, with this shape:
{
  "findings": [
    {
      "category": "pricing|payment|renewal|termination|liability|compliance|sla|discounts|volume|other",
      "severity": "critical|high|medium|low",
      "confidence": 0.0,
      "title": "short risk label",
      "explanation": "what the issue is and why it leaks value",
      "affected_clause_ids": ["clause id from the context"],
      "recommended_action": "specific remediation",
      "estimated_impact_value": 0.0,
      "estimated_impact_currency": "USD",
      "impact_calculation_method": "how the impact was estimated",
      "assumptions": ["inputs assumed in the estimate"]
    }
  ]
}`

const repairInstruction = `Your previous reply could not be parsed. Return ONLY a valid JSON object matching the required shape, with no surrounding text.`

// buildDetectionPrompt renders the user section of the detection prompt:
// contract metadata followed by the retrieved clauses, capped in count by
// the assembler and in size per clause here.
func buildDetectionPrompt(meta domain.ContractMetadata, rag *domain.RagContext) string {
	var b strings.Builder

	b.WriteString("Contract metadata:\n")
	fmt.Fprintf(&b, "- contract_id: %s\n", meta.ContractID)
	if meta.ContractName != "" {
		fmt.Fprintf(&b, "- name: %s\n", meta.ContractName)
	}
	if meta.Counterparty != "" {
		fmt.Fprintf(&b, "- counterparty: %s\n", meta.Counterparty)
	}
	if meta.ContractType != "" {
		fmt.Fprintf(&b, "- type: %s\n", meta.ContractType)
	}
	if meta.ContractValue > 0 {
		fmt.Fprintf(&b, "- value: %.2f %s\n", meta.ContractValue, valueCurrency(meta))
	}
	if meta.DurationMonths > 0 {
		fmt.Fprintf(&b, "- duration_months: %d\n", meta.DurationMonths)
	}

	b.WriteString("\nRetrieved clauses:\n")
	for i, rc := range rag.Clauses {
		c := rc.Clause
		fmt.Fprintf(&b, "\n[%d] clause_id=%s type=%s", i+1, c.ID, c.ClauseType)
		if c.SectionNumber != "" {
			fmt.Fprintf(&b, " section=%s", c.SectionNumber)
		}
		fmt.Fprintf(&b, " score=%.3f", rc.Score)
		if len(c.RiskSignals) > 0 {
			fmt.Fprintf(&b, " signals=%s", strings.Join(c.RiskSignals, ","))
		}
		b.WriteString("\n")
		b.WriteString(promptText(c))
		b.WriteString("\n")
	}

	b.WriteString("\nIdentify commercial leakage in these clauses. Report only findings supported by the clauses above.")
	return b.String()
}

func promptText(c domain.Clause) string {
	text := c.NormalizedSummary
	if text == "" {
		text = c.OriginalText
	}
	if len(text) > maxPromptSummaryChars {
		text = text[:maxPromptSummaryChars]
	}
	return text
}

func valueCurrency(meta domain.ContractMetadata) string {
	if meta.Currency != "" {
		return meta.Currency
	}
	return "USD"
}
