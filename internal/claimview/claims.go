package claimview

import "claimdesk.org/internal/claims"

// ClaimRow turns a claim into a Row keyed by its JSON field names.
func ClaimRow(c claims.Claim) Row {
	r := Row{
		"claim_id":           c.ID,
		"claim_code":         c.Code,
		"claim_amount":       c.Amount,
		"hospital_name":      c.HospitalName,
		"patient_name":       c.PatientName,
		"date_of_claim":      c.DateOfClaim,
		"submitted_by":       c.SubmittedBy,
		"claim_status":       string(c.Status),
		"claim_date_created": c.CreatedAt,
		"claim_date_updated": c.UpdatedAt,
	}
	if c.SubmitterName != "" {
		r["submitter_name"] = c.SubmitterName
	}
	return r
}

// ProjectClaims runs Project over claims and returns the typed records in
// view order.
func ProjectClaims(list []claims.Claim, state ViewState) []claims.Claim {
	if !state.Active() {
		return list
	}
	order := project(len(list), func(i int) Row { return ClaimRow(list[i]) }, state)
	out := make([]claims.Claim, len(order))
	for i, idx := range order {
		out[i] = list[idx]
	}
	return out
}
