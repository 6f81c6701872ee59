package empire

import (
	"math"

	"stellardominion.io/internal/sim/balance"
)

// TrainOrder maps unit kinds to requested quantities.
type TrainOrder map[UnitKind]int64

// Total is the number of citizens (or units, for disband) the order touches.
func (o TrainOrder) Total() int64 {
	var n int64
	for _, q := range o {
		n += q
	}
	return n
}

func (o TrainOrder) validate() error {
	if len(o) == 0 {
		return validationf("empty order")
	}
	for k, q := range o {
		if _, ok := ParseUnitKind(string(k)); !ok {
			return validationf("unknown unit kind %q", k)
		}
		if q < 0 {
			return validationf("negative quantity %d for %q", q, k)
		}
	}
	if o.Total() == 0 {
		return validationf("order trains nothing")
	}
	return nil
}

// UnitCost is the charisma-discounted price of one unit:
// floor(base_cost * (1 - min(charisma, cap)/100)).
func UnitCost(kind UnitKind, charisma int, bal *balance.Balance) int64 {
	discount := charisma
	if discount > bal.CharismaDiscountCap {
		discount = bal.CharismaDiscountCap
	}
	if discount < 0 {
		discount = 0
	}
	base := UnitStats(kind, bal).Cost
	return int64(math.Floor(float64(base) * (1 - float64(discount)/100)))
}

// TrainCost totals an order: credits due and citizens consumed.
func TrainCost(o TrainOrder, charisma int, bal *balance.Balance) (credits, citizens int64) {
	for k, q := range o {
		credits += q * UnitCost(k, charisma, bal)
		citizens += q
	}
	return credits, citizens
}

// TrainReceipt records what a successful training applied.
type TrainReceipt struct {
	Order            TrainOrder
	CreditsSpent     int64
	CitizensConsumed int64
}

// ApplyTraining converts untrained citizens into units. The whole batch
// succeeds or the whole batch is rejected; on rejection the player snapshot
// is untouched.
func ApplyTraining(p *Player, o TrainOrder, bal *balance.Balance) (*TrainReceipt, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	cost, citizens := TrainCost(o, p.Charisma, bal)
	if citizens > p.UntrainedCitizens {
		return nil, &InsufficientError{Resource: "citizens", Need: citizens, Have: p.UntrainedCitizens}
	}
	if cost > p.Credits {
		return nil, &InsufficientError{Resource: "credits", Need: cost, Have: p.Credits}
	}
	p.UntrainedCitizens -= citizens
	p.Credits -= cost
	for k, q := range o {
		p.AddUnits(k, q)
	}
	return &TrainReceipt{Order: o, CreditsSpent: cost, CitizensConsumed: citizens}, nil
}

// ApplyDisband removes units. Disbanding refunds nothing and returns no
// citizen to the untrained pool; the unit is simply gone.
func ApplyDisband(p *Player, o TrainOrder, bal *balance.Balance) error {
	if err := o.validate(); err != nil {
		return err
	}
	for k, q := range o {
		if q > p.UnitCount(k) {
			return &InsufficientError{Resource: string(k), Need: q, Have: p.UnitCount(k)}
		}
	}
	for k, q := range o {
		p.AddUnits(k, -q)
	}
	return nil
}

// SplitEvenBasket distributes total citizens across the five kinds in
// canonical order, earliest kinds receiving the remainder.
func SplitEvenBasket(total int64) TrainOrder {
	o := TrainOrder{}
	if total <= 0 {
		return o
	}
	per := total / int64(len(AllUnitKinds))
	rem := total % int64(len(AllUnitKinds))
	for i, k := range AllUnitKinds {
		q := per
		if int64(i) < rem {
			q++
		}
		if q > 0 {
			o[k] = q
		}
	}
	return o
}

// MaxEvenBasket finds, by binary search, the largest total T <= citizens
// whose even five-way split is affordable with the given credits. Cost is
// monotone in T, so the search is sound.
func MaxEvenBasket(citizens, credits int64, charisma int, bal *balance.Balance) (int64, TrainOrder) {
	affordable := func(t int64) bool {
		cost, _ := TrainCost(SplitEvenBasket(t), charisma, bal)
		return cost <= credits
	}
	lo, hi := int64(0), citizens
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if affordable(mid) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, SplitEvenBasket(lo)
}
