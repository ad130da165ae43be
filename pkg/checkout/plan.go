package checkout

// Plan is one subscription tier. Amounts are integer cents in BRL.
// MonthlyAnalyses of zero means unlimited.
type Plan struct {
	ID              string
	Name            string
	AmountCents     int64
	Currency        string
	MonthlyAnalyses int
}

// PlanCatalog is the fixed allow-list of plans known at startup. There is
// no persistence behind it; plan changes ship as code.
type PlanCatalog struct {
	plans map[string]Plan
	order []string
}

// DefaultCatalog returns the product's plan tiers. "basico" is the default
// plan applied when an intent request omits planId.
func DefaultCatalog() *PlanCatalog {
	c := &PlanCatalog{plans: make(map[string]Plan)}
	for _, p := range []Plan{
		{ID: "free", Name: "Gratuito", AmountCents: 0, Currency: "brl", MonthlyAnalyses: 3},
		{ID: "basico", Name: "Básico", AmountCents: 1990, Currency: "brl", MonthlyAnalyses: 30},
		{ID: "avancado", Name: "Avançado", AmountCents: 4990, Currency: "brl", MonthlyAnalyses: 0},
	} {
		c.plans[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	return c
}

// Get looks up a plan by id.
func (c *PlanCatalog) Get(id string) (Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// Purchasable returns the ids of plans that can be bought, i.e. the
// allow-list used by intent issuance.
func (c *PlanCatalog) Purchasable() []string {
	var out []string
	for _, id := range c.order {
		if c.plans[id].AmountCents > 0 {
			out = append(out, id)
		}
	}
	return out
}
