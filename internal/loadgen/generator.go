package loadgen

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/okian/attrition/internal/domain/model"
	"github.com/okian/attrition/internal/domain/vocabulary"
)

// Generator produces profiles that pass range validation and only use
// labels known to the vocabulary.
type Generator struct {
	rng    *rand.Rand
	vocab  *vocabulary.Registry
	bounds map[string]model.Range
}

// NewGenerator returns a Generator. The same seed yields the same sequence.
func NewGenerator(seed uint64, vocab *vocabulary.Registry) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if vocab == nil {
		vocab = vocabulary.Default()
	}
	bounds := make(map[string]model.Range)
	for _, r := range model.Ranges() {
		bounds[r.Field] = r
	}
	return &Generator{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		vocab:  vocab,
		bounds: bounds,
	}
}

// Profiles returns n generated profiles.
func (g *Generator) Profiles(n int) []model.ScoringRequest {
	out := make([]model.ScoringRequest, n)
	for i := range out {
		out[i] = g.Profile()
	}
	return out
}

// Profile returns one generated profile. Balances are kept consistent:
// open-to-buy is limit minus revolving balance and utilization is their ratio.
func (g *Generator) Profile() model.ScoringRequest {
	credit := g.amount("credit_limit", 1000)
	revolving := math.Min(g.amount("total_revolving_bal", 0), credit)

	req := model.ScoringRequest{
		CustomerAge:            g.whole("customer_age"),
		Gender:                 g.label(vocabulary.Gender),
		DependentCount:         g.whole("dependent_count"),
		EducationLevel:         g.label(vocabulary.Education),
		MaritalStatus:          g.label(vocabulary.Marital),
		IncomeCategory:         g.label(vocabulary.Income),
		CardCategory:           g.label(vocabulary.Card),
		MonthsOnBook:           g.whole("months_on_book"),
		TotalRelationshipCount: g.whole("total_relationship_count"),
		MonthsInactive12Mon:    g.whole("months_inactive_12_mon"),
		ContactsCount12Mon:     g.whole("contacts_count_12_mon"),
		CreditLimit:            credit,
		TotalRevolvingBal:      revolving,
		AvgOpenToBuy:           credit - revolving,
		TotalAmtChngQ4Q1:       g.ratio("total_amt_chng_q4_q1"),
		TotalTransAmt:          g.amount("total_trans_amt", 0),
		TotalTransCt:           g.whole("total_trans_ct"),
		TotalCtChngQ4Q1:        g.ratio("total_ct_chng_q4_q1"),
		AvgUtilizationRatio:    math.Round(revolving/credit*1000) / 1000,
	}
	return req
}

func (g *Generator) label(attr vocabulary.Attribute) string {
	values := g.vocab.ValuesOf(attr)
	return values[g.rng.IntN(len(values))]
}

func (g *Generator) whole(field string) int {
	b := g.bounds[field]
	lo, hi := int(b.Min), int(b.Max)
	return lo + g.rng.IntN(hi-lo+1)
}

// amount draws a whole-currency amount no lower than floor.
func (g *Generator) amount(field string, floor float64) float64 {
	b := g.bounds[field]
	lo := math.Max(b.Min, floor)
	return math.Round(lo + g.rng.Float64()*(b.Max-lo))
}

// ratio draws a quarter-over-quarter change, concentrated below 2.
func (g *Generator) ratio(field string) float64 {
	b := g.bounds[field]
	v := b.Min + g.rng.ExpFloat64()*0.7
	return math.Round(math.Min(v, b.Max)*1000) / 1000
}
