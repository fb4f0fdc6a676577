package profiles

import (
	"fmt"
	"math/rand/v2"

	"github.com/samber/lo"
)

// DefaultSeed makes repeated scenario runs draw the same community.
const DefaultSeed = 1234

// Household is a sampling candidate.
type Household struct {
	ID       string
	Building BuildingType
}

// EligiblePool returns, in survey order, the eligible households of city that
// have consumption data.
func EligiblePool(answers []Answer, demand DemandTable, city int) ([]Household, error) {
	eligible := lo.Filter(answers, func(a Answer, _ int) bool {
		_, ok := demand[a.ID]
		return ok && a.Eligible(city)
	})
	pool := make([]Household, 0, len(eligible))
	for _, a := range eligible {
		bt, err := a.BuildingType()
		if err != nil {
			return nil, err
		}
		pool = append(pool, Household{ID: a.ID, Building: bt})
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w in city %d", ErrNoEligibleHouseholds, city)
	}
	return pool, nil
}

// SampleHouseholds draws n households from pool with replacement. The same
// seed, pool order and n always give the same sequence.
func SampleHouseholds(pool []Household, n int, seed uint64) ([]Household, error) {
	if len(pool) == 0 {
		return nil, ErrNoEligibleHouseholds
	}
	if n <= 0 {
		return nil, fmt.Errorf("number of households must be positive, got: %d", n)
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	out := make([]Household, n)
	for i := range out {
		out[i] = pool[rng.IntN(len(pool))]
	}
	return out, nil
}
