package models

import (
	"time"

	"github.com/teambition/rrule-go"
)

// PlanID identifies a purchase plan
type PlanID string

const (
	PlanA     PlanID = "A"
	PlanB     PlanID = "B"
	PlanC     PlanID = "C"
	PlanD     PlanID = "D"
	PlanOther PlanID = "Other"
)

// MonthLabelLayout is the format used for entries of a ledger's pending month list, e.g. "January 2026"
const MonthLabelLayout = "January 2006"

// PlanDefinition is the static description of a plan
type PlanDefinition struct {
	ID             PlanID
	TotalAmount    int64
	TotalMonths    int
	PerMonthAmount int64
	IsEmi          bool
	SqFeet         int

	// CustomAmount plans take their total from the purchase request instead of the catalog.
	CustomAmount bool
	// LumpSumCommission marks plans whose full-payment approval pays the percentage commission.
	LumpSumCommission bool
	// SignupBonus marks plans whose approval pays the flat collaborator bonus.
	SignupBonus bool
}

var planCatalog = map[PlanID]PlanDefinition{
	PlanA: {ID: PlanA, TotalAmount: 600000, SqFeet: 1200, LumpSumCommission: true},
	PlanB: {ID: PlanB, TotalAmount: 300000, SqFeet: 600, LumpSumCommission: true},
	PlanC: {ID: PlanC, TotalAmount: 300000, TotalMonths: 60, PerMonthAmount: 5000, IsEmi: true, SqFeet: 600, SignupBonus: true},
	PlanD: {ID: PlanD, TotalAmount: 300000, TotalMonths: 150, PerMonthAmount: 2000, IsEmi: true, SqFeet: 600},
	PlanOther: {ID: PlanOther, CustomAmount: true},
}

// LookupPlan returns the catalog entry for a plan id
func LookupPlan(id PlanID) (PlanDefinition, bool) {
	def, ok := planCatalog[id]
	return def, ok
}

// Plans returns every catalog entry, EMI plans last
func Plans() []PlanDefinition {
	return []PlanDefinition{planCatalog[PlanA], planCatalog[PlanB], planCatalog[PlanOther], planCatalog[PlanC], planCatalog[PlanD]}
}

// IsLumpSum reports whether the plan is settled with a single payment
func (p PlanDefinition) IsLumpSum() bool {
	return !p.IsEmi
}

// MonthLabels lists count calendar-month labels starting with the month after from
func (p PlanDefinition) MonthLabels(from time.Time, count int) []string {
	if count <= 0 {
		return []string{}
	}

	start := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.MONTHLY,
		Dtstart: start,
		Count:   count,
	})
	if err != nil {
		// Fallback to plain month arithmetic if the rule cannot be built
		labels := make([]string, 0, count)
		for i := 0; i < count; i++ {
			labels = append(labels, start.AddDate(0, i, 0).Format(MonthLabelLayout))
		}
		return labels
	}

	occurrences := rule.All()
	labels := make([]string, 0, len(occurrences))
	for _, t := range occurrences {
		labels = append(labels, t.Format(MonthLabelLayout))
	}
	return labels
}
