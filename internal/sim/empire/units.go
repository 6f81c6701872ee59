// Package empire implements the turn and combat accounting core: offline
// turn reconciliation, training/disband, attack and espionage resolution,
// and vault/bank capacity management. Everything here is pure state-in,
// state-out logic; persistence and transactions live in internal/sim/engine.
package empire

import (
	"fmt"

	"stellardominion.io/internal/sim/balance"
)

type UnitKind string

const (
	UnitWorkers  UnitKind = "workers"
	UnitSoldiers UnitKind = "soldiers"
	UnitGuards   UnitKind = "guards"
	UnitSentries UnitKind = "sentries"
	UnitSpies    UnitKind = "spies"
)

// AllUnitKinds is the canonical ordering. Even-split remainders and
// reporting both follow it.
var AllUnitKinds = []UnitKind{UnitWorkers, UnitSoldiers, UnitGuards, UnitSentries, UnitSpies}

// ParseUnitKind maps a wire string onto the closed enum.
func ParseUnitKind(s string) (UnitKind, bool) {
	switch UnitKind(s) {
	case UnitWorkers, UnitSoldiers, UnitGuards, UnitSentries, UnitSpies:
		return UnitKind(s), true
	}
	return "", false
}

// UnitStats looks up the balance entry for a kind. The balance table is
// validated at load time, so a missing entry is a programming error.
func UnitStats(kind UnitKind, bal *balance.Balance) balance.UnitStats {
	u, ok := bal.Units[string(kind)]
	if !ok {
		panic(fmt.Sprintf("empire: no balance entry for unit kind %q", kind))
	}
	return u
}

// ValidateUnitTable confirms the balance table covers every enum member.
// Called once at startup, mirroring the engine's dispatch-map validation.
func ValidateUnitTable(bal *balance.Balance) error {
	for _, k := range AllUnitKinds {
		if _, ok := bal.Units[string(k)]; !ok {
			return fmt.Errorf("balance units table missing %q", k)
		}
	}
	if len(bal.Units) != len(AllUnitKinds) {
		return fmt.Errorf("balance units table has %d entries, want %d", len(bal.Units), len(AllUnitKinds))
	}
	return nil
}
