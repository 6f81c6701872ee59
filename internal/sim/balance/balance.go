// Package balance is the single source of truth for tunable game constants.
// Values load from balance.yaml, can be overridden via SD_* environment
// variables, and are immutable for the lifetime of the process.
package balance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// UnitStats describes the cost and combat weight of one unit kind.
type UnitStats struct {
	Cost        int64 `yaml:"cost" json:"cost"`
	Maintenance int64 `yaml:"maintenance" json:"maintenance"`
	Offense     int64 `yaml:"offense" json:"offense"`
	Defense     int64 `yaml:"defense" json:"defense"`
}

type Balance struct {
	// Turn economy.
	TurnMinutes        int     `yaml:"turn_minutes" json:"turn_minutes"`
	AttackTurnsPerTurn int     `yaml:"attack_turns_per_turn" json:"attack_turns_per_turn"`
	MaxAttackTurns     int     `yaml:"max_attack_turns" json:"max_attack_turns"`
	CitizensPerTurn    int64   `yaml:"citizens_per_turn" json:"citizens_per_turn"`
	BaseIncomePerTurn  int64   `yaml:"base_income_per_turn" json:"base_income_per_turn"`
	CreditsPerWorker   int64   `yaml:"credits_per_worker" json:"credits_per_worker"`
	WealthIncomePct    float64 `yaml:"wealth_income_pct" json:"wealth_income_pct"`
	FatiguePurgePct    float64 `yaml:"fatigue_purge_pct" json:"fatigue_purge_pct"`

	// Training.
	CharismaDiscountCap int `yaml:"charisma_discount_cap" json:"charisma_discount_cap"`

	// Attribute scaling (percent per point).
	StrengthPct     float64 `yaml:"strength_pct" json:"strength_pct"`
	ConstitutionPct float64 `yaml:"constitution_pct" json:"constitution_pct"`
	DexterityPct    float64 `yaml:"dexterity_pct" json:"dexterity_pct"`
	ArmoryPct       float64 `yaml:"armory_pct" json:"armory_pct"`
	FortificationPct float64 `yaml:"fortification_pct" json:"fortification_pct"`

	// Combat resolution.
	UnderdogThreshold float64 `yaml:"underdog_threshold" json:"underdog_threshold"`
	TurnPowerExponent float64 `yaml:"turn_power_exponent" json:"turn_power_exponent"`
	TurnPowerCap      float64 `yaml:"turn_power_cap" json:"turn_power_cap"`
	NoiseMin          float64 `yaml:"noise_min" json:"noise_min"`
	NoiseMax          float64 `yaml:"noise_max" json:"noise_max"`

	PlunderPctCap     float64 `yaml:"plunder_pct_cap" json:"plunder_pct_cap"`
	PlunderPerTurnPct float64 `yaml:"plunder_per_turn_pct" json:"plunder_per_turn_pct"`

	GuardCasualtyBasePct      float64 `yaml:"guard_casualty_base_pct" json:"guard_casualty_base_pct"`
	GuardCasualtyAdvantagePct float64 `yaml:"guard_casualty_advantage_pct" json:"guard_casualty_advantage_pct"`
	MinGuardFloor             int64   `yaml:"min_guard_floor" json:"min_guard_floor"`

	StructureDamageBasePct float64 `yaml:"structure_damage_base_pct" json:"structure_damage_base_pct"`
	StructureAdvantageExp  float64 `yaml:"structure_advantage_exp" json:"structure_advantage_exp"`
	StructureTurnExp       float64 `yaml:"structure_turn_exp" json:"structure_turn_exp"`
	StructureDamageMinPct  float64 `yaml:"structure_damage_min_pct" json:"structure_damage_min_pct"`
	StructureDamageMaxPct  float64 `yaml:"structure_damage_max_pct" json:"structure_damage_max_pct"`
	RazedWinMinPct         float64 `yaml:"razed_win_min_pct" json:"razed_win_min_pct"`
	RazedWinMaxPct         float64 `yaml:"razed_win_max_pct" json:"razed_win_max_pct"`
	RazedLossMinPct        float64 `yaml:"razed_loss_min_pct" json:"razed_loss_min_pct"`
	RazedLossMaxPct        float64 `yaml:"razed_loss_max_pct" json:"razed_loss_max_pct"`

	// XP awards.
	AttackerWinXPMin  int64   `yaml:"attacker_win_xp_min" json:"attacker_win_xp_min"`
	AttackerWinXPMax  int64   `yaml:"attacker_win_xp_max" json:"attacker_win_xp_max"`
	AttackerLossXPMin int64   `yaml:"attacker_loss_xp_min" json:"attacker_loss_xp_min"`
	AttackerLossXPMax int64   `yaml:"attacker_loss_xp_max" json:"attacker_loss_xp_max"`
	DefenderWinXPMin  int64   `yaml:"defender_win_xp_min" json:"defender_win_xp_min"`
	DefenderWinXPMax  int64   `yaml:"defender_win_xp_max" json:"defender_win_xp_max"`
	DefenderLossXPMin int64   `yaml:"defender_loss_xp_min" json:"defender_loss_xp_min"`
	DefenderLossXPMax int64   `yaml:"defender_loss_xp_max" json:"defender_loss_xp_max"`
	LevelGapXPSlope   float64 `yaml:"level_gap_xp_slope" json:"level_gap_xp_slope"`
	AttackerXPTurnExp float64 `yaml:"attacker_xp_turn_exp" json:"attacker_xp_turn_exp"`
	DefenderXPTurnExp float64 `yaml:"defender_xp_turn_exp" json:"defender_xp_turn_exp"`

	// Anti-farm limits (per attacker/target pair).
	FullPlunderAttacksPerHour    int     `yaml:"full_plunder_attacks_per_hour" json:"full_plunder_attacks_per_hour"`
	ReducedPlunderAttacksPerHour int     `yaml:"reduced_plunder_attacks_per_hour" json:"reduced_plunder_attacks_per_hour"`
	ReducedPlunderPct            float64 `yaml:"reduced_plunder_pct" json:"reduced_plunder_pct"`
	StructureOnlyAttacksPerDay   int     `yaml:"structure_only_attacks_per_day" json:"structure_only_attacks_per_day"`

	// Alliances.
	AllianceCombatBonusPct float64 `yaml:"alliance_combat_bonus_pct" json:"alliance_combat_bonus_pct"`
	AllianceTributePct     float64 `yaml:"alliance_tribute_pct" json:"alliance_tribute_pct"`

	// Espionage.
	SpyCasualtyPct float64 `yaml:"spy_casualty_pct" json:"spy_casualty_pct"`

	// Vault/bank.
	BaseVaultCapacity   int64   `yaml:"base_vault_capacity" json:"base_vault_capacity"`
	MaxActiveVaults     int     `yaml:"max_active_vaults" json:"max_active_vaults"`
	VaultCost           int64   `yaml:"vault_cost" json:"vault_cost"`
	DepositBaseSlots    int     `yaml:"deposit_base_slots" json:"deposit_base_slots"`
	DepositSlotsPer10Lv int     `yaml:"deposit_slots_per_10_levels" json:"deposit_slots_per_10_levels"`
	DepositMaxSlots     int     `yaml:"deposit_max_slots" json:"deposit_max_slots"`
	DepositWindowHours  int     `yaml:"deposit_window_hours" json:"deposit_window_hours"`
	DepositMaxPct       float64 `yaml:"deposit_max_pct" json:"deposit_max_pct"`

	// Per-kind unit stats, keyed by wire name (workers, soldiers, ...).
	Units map[string]UnitStats `yaml:"units" json:"units"`
}

// Defaults returns the shipped balance values. Keep in sync with
// configs/balance.yaml.
func Defaults() Balance {
	return Balance{
		TurnMinutes:        10,
		AttackTurnsPerTurn: 2,
		MaxAttackTurns:     100,
		CitizensPerTurn:    10,
		BaseIncomePerTurn:  1000,
		CreditsPerWorker:   50,
		WealthIncomePct:    1.0,
		FatiguePurgePct:    0.10,

		CharismaDiscountCap: 75,

		StrengthPct:      1.0,
		ConstitutionPct:  1.0,
		DexterityPct:     1.0,
		ArmoryPct:        5.0,
		FortificationPct: 5.0,

		UnderdogThreshold: 0.985,
		TurnPowerExponent: 0.50,
		TurnPowerCap:      1.45,
		NoiseMin:          1.00,
		NoiseMax:          1.02,

		PlunderPctCap:     0.20,
		PlunderPerTurnPct: 0.04,

		GuardCasualtyBasePct:      0.03,
		GuardCasualtyAdvantagePct: 0.05,
		MinGuardFloor:             5000,

		StructureDamageBasePct: 0.08,
		StructureAdvantageExp:  0.75,
		StructureTurnExp:       0.40,
		StructureDamageMinPct:  0.05,
		StructureDamageMaxPct:  0.25,
		RazedWinMinPct:         0.05,
		RazedWinMaxPct:         0.15,
		RazedLossMinPct:        0.01,
		RazedLossMaxPct:        0.03,

		AttackerWinXPMin:  100,
		AttackerWinXPMax:  150,
		AttackerLossXPMin: 25,
		AttackerLossXPMax: 50,
		DefenderWinXPMin:  50,
		DefenderWinXPMax:  75,
		DefenderLossXPMin: 10,
		DefenderLossXPMax: 20,
		LevelGapXPSlope:   0.05,
		AttackerXPTurnExp: 1.0,
		DefenderXPTurnExp: 0.0,

		FullPlunderAttacksPerHour:    5,
		ReducedPlunderAttacksPerHour: 10,
		ReducedPlunderPct:            0.25,
		StructureOnlyAttacksPerDay:   30,

		AllianceCombatBonusPct: 0.10,
		AllianceTributePct:     0.05,

		SpyCasualtyPct: 0.25,

		BaseVaultCapacity:   3_000_000_000,
		MaxActiveVaults:     10,
		VaultCost:           500_000_000,
		DepositBaseSlots:    3,
		DepositSlotsPer10Lv: 1,
		DepositMaxSlots:     10,
		DepositWindowHours:  6,
		DepositMaxPct:       0.80,

		Units: map[string]UnitStats{
			"workers":  {Cost: 1000, Maintenance: 5, Offense: 0, Defense: 0},
			"soldiers": {Cost: 2500, Maintenance: 10, Offense: 10, Defense: 0},
			"guards":   {Cost: 2500, Maintenance: 10, Offense: 0, Defense: 10},
			"sentries": {Cost: 5000, Maintenance: 5, Offense: 0, Defense: 10},
			"spies":    {Cost: 10000, Maintenance: 15, Offense: 5, Defense: 0},
		},
	}
}

// Load reads a balance file and applies SD_* environment overrides on top.
func Load(path string) (Balance, error) {
	b := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("balance.yaml: %w", err)
	}
	b.applyEnv()
	if err := b.Validate(); err != nil {
		return b, err
	}
	return b, nil
}

// FromEnv returns the defaults with SD_* overrides applied. Used when no
// balance file is present.
func FromEnv() Balance {
	b := Defaults()
	b.applyEnv()
	return b
}

// applyEnv applies documented environment overrides. Out-of-range values are
// clamped to the nearest valid bound, never accepted unclamped.
func (b *Balance) applyEnv() {
	envInt := func(key string, dst *int, lo, hi int) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return
		}
		*dst = clampInt(n, lo, hi)
	}
	envInt64 := func(key string, dst *int64, lo, hi int64) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return
		}
		*dst = clampInt64(n, lo, hi)
	}
	envFloat := func(key string, dst *float64, lo, hi float64) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return
		}
		*dst = clampFloat(f, lo, hi)
	}

	envInt("SD_TURN_MINUTES", &b.TurnMinutes, 1, 60)
	envInt("SD_ATTACK_TURNS_PER_TURN", &b.AttackTurnsPerTurn, 0, 10)
	envInt("SD_CHARISMA_DISCOUNT_CAP", &b.CharismaDiscountCap, 0, 90)
	envFloat("SD_FATIGUE_PURGE_PCT", &b.FatiguePurgePct, 0, 1)
	envFloat("SD_UNDERDOG_THRESHOLD", &b.UnderdogThreshold, 0.5, 1.0)
	envFloat("SD_PLUNDER_PCT_CAP", &b.PlunderPctCap, 0, 1)
	envFloat("SD_ALLIANCE_COMBAT_BONUS_PCT", &b.AllianceCombatBonusPct, 0, 1)
	envFloat("SD_ALLIANCE_TRIBUTE_PCT", &b.AllianceTributePct, 0, 1)
	envInt64("SD_BASE_VAULT_CAPACITY", &b.BaseVaultCapacity, 1_000_000, 1_000_000_000_000)
	envFloat("SD_DEPOSIT_MAX_PCT", &b.DepositMaxPct, 0, 1)
}

// Validate rejects configurations the engine cannot run with. Clamping covers
// overrides; Validate covers hand-edited files.
func (b *Balance) Validate() error {
	if b.TurnMinutes <= 0 {
		return fmt.Errorf("turn_minutes must be positive, got %d", b.TurnMinutes)
	}
	if b.NoiseMin > b.NoiseMax {
		return fmt.Errorf("noise_min %.3f > noise_max %.3f", b.NoiseMin, b.NoiseMax)
	}
	if b.StructureDamageMinPct > b.StructureDamageMaxPct {
		return fmt.Errorf("structure damage bounds inverted")
	}
	if b.BaseVaultCapacity <= 0 {
		return fmt.Errorf("base_vault_capacity must be positive")
	}
	for _, name := range []string{"workers", "soldiers", "guards", "sentries", "spies"} {
		u, ok := b.Units[name]
		if !ok {
			return fmt.Errorf("units: missing %q", name)
		}
		if u.Cost < 0 || u.Maintenance < 0 || u.Offense < 0 || u.Defense < 0 {
			return fmt.Errorf("units: %q has negative stats", name)
		}
	}
	return nil
}

// Digest is a stable identifier for the applied balance values, recorded in
// the store and echoed to clients at handshake.
func (b *Balance) Digest() string {
	raw, _ := json.Marshal(b)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
