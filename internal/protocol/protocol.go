// Package protocol defines the JSON wire format between clients and the
// game server, the operation vocabulary, and the error codes operations
// fail with.
package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeOp      = "OP"
	TypeResult  = "RESULT"
)

// Operation kinds carried by OP messages.
const (
	OpStatus        = "STATUS"
	OpTrain         = "TRAIN"
	OpDisband       = "DISBAND"
	OpAutoTrain     = "AUTO_TRAIN"
	OpAttack        = "ATTACK"
	OpSpy           = "SPY"
	OpDeposit       = "DEPOSIT"
	OpWithdraw      = "WITHDRAW"
	OpBuyVault      = "BUY_VAULT"
	OpLeaderboard   = "LEADERBOARD"
	OpBattleHistory = "BATTLE_HISTORY"
	OpBankHistory   = "BANK_HISTORY"
)

var knownOps = map[string]struct{}{
	OpStatus:        {},
	OpTrain:         {},
	OpDisband:       {},
	OpAutoTrain:     {},
	OpAttack:        {},
	OpSpy:           {},
	OpDeposit:       {},
	OpWithdraw:      {},
	OpBuyVault:      {},
	OpLeaderboard:   {},
	OpBattleHistory: {},
	OpBankHistory:   {},
}

func IsKnownOp(kind string) bool {
	_, ok := knownOps[kind]
	return ok
}

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
