package models

// Verdict is the outcome of validating one ETL type conversion.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictWarn Verdict = "warn"
	VerdictFail Verdict = "fail"
)

// TransformationResult is reported by the ETL collaborator for one converted column.
// NullPercentageBefore is nil when the pre-conversion rate is unknown.
type TransformationResult struct {
	Column               string   `json:"column"`
	SourceType           string   `json:"source_type"`
	TargetType           string   `json:"target_type"`
	NullPercentageBefore *float64 `json:"null_percentage_before,omitempty"`
	NullPercentage       float64  `json:"null_percentage"`
}

// TransformationOutcome is the verdict for one column.
type TransformationOutcome struct {
	Column               string   `json:"column"`
	SourceType           string   `json:"source_type"`
	TargetType           string   `json:"target_type"`
	NullPercentageBefore *float64 `json:"null_percentage_before,omitempty"`
	NullPercentageAfter  float64  `json:"null_percentage_after"`
	Verdict              Verdict  `json:"verdict"`
	Reason               string   `json:"reason,omitempty"`
	Critical             bool     `json:"critical"`
}

// ValidationReport aggregates outcomes for one ETL run.
type ValidationReport struct {
	Overall          Verdict                 `json:"overall"`
	Outcomes         []TransformationOutcome `json:"outcomes"`
	Warnings         []string                `json:"warnings,omitempty"`
	CriticalFailures int                     `json:"critical_failures"`
}

// Passed reports whether the run may proceed without user override.
func (r *ValidationReport) Passed() bool {
	return r != nil && r.Overall != VerdictFail
}
