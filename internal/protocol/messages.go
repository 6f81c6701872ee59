package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	PlayerName      string     `json:"player_name"`
	Auth            *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        int64  `json:"player_id"`
	PlayerName      string `json:"player_name"`
	SessionID       string `json:"session_id"`
	// BalanceDigest identifies the tuning values in force; clients cache
	// derived UI against it.
	BalanceDigest string `json:"balance_digest"`
	TurnMinutes   int    `json:"turn_minutes"`
	ServerTime    string `json:"server_time"`
}

// OP (client -> server): one game operation. Fields beyond Kind are
// kind-specific; unused ones stay at their zero value.
type OpMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	// ID correlates the RESULT with this request. Client-chosen, opaque.
	ID   string `json:"id"`
	Kind string `json:"kind"`

	TargetID int64            `json:"target_id,omitempty"` // ATTACK, SPY
	Turns    int              `json:"turns,omitempty"`     // ATTACK
	Spies    int64            `json:"spies,omitempty"`     // SPY
	Amount   int64            `json:"amount,omitempty"`    // DEPOSIT, WITHDRAW
	Units    map[string]int64 `json:"units,omitempty"`     // TRAIN, DISBAND
	Limit    int              `json:"limit,omitempty"`     // LEADERBOARD, *_HISTORY
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	OpID            string `json:"op_id"`
	Ok              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Data            any    `json:"data,omitempty"`
}

// NewResult builds a success RESULT for an op.
func NewResult(opID string, data any) ResultMsg {
	return ResultMsg{
		Type:            TypeResult,
		ProtocolVersion: Version,
		OpID:            opID,
		Ok:              true,
		Data:            data,
	}
}

// NewError builds a failure RESULT for an op.
func NewError(opID, code, message string) ResultMsg {
	return ResultMsg{
		Type:            TypeResult,
		ProtocolVersion: Version,
		OpID:            opID,
		Ok:              false,
		Code:            code,
		Message:         message,
	}
}

// DecodeOp parses an OP message and checks its vocabulary.
func DecodeOp(b []byte) (OpMsg, error) {
	var m OpMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return m, err
	}
	return m, nil
}
