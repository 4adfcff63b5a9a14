package domain

// Constraints are the hard filters a candidate property must satisfy.
// Zero values mean "no constraint" for the optional fields.
type Constraints struct {
	Type      PropertyType
	Intent    Intent
	BudgetMin float64
	BudgetMax float64
	City      string
	District  string
}

// Validate rejects malformed constraint data. Inconsistencies are surfaced
// immediately, never silently corrected.
func (c Constraints) Validate() error {
	if c.BudgetMin < 0 {
		return NewConstraintError("budget_min", "must not be negative")
	}
	if c.BudgetMax < 0 {
		return NewConstraintError("budget_max", "must not be negative")
	}
	if c.BudgetMin > 0 && c.BudgetMax > 0 && c.BudgetMin > c.BudgetMax {
		return NewConstraintError("budget_min", "exceeds budget_max")
	}
	return nil
}

// BudgetMidpoint returns the midpoint of the requested budget range, or 0
// when no range is set. Used for constraint-proximity scoring of candidates
// that lack a current embedding.
func (c Constraints) BudgetMidpoint() float64 {
	if c.BudgetMax <= 0 {
		return c.BudgetMin
	}
	if c.BudgetMin <= 0 {
		return c.BudgetMax
	}
	return (c.BudgetMin + c.BudgetMax) / 2
}
