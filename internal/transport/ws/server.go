// Package ws serves the game protocol over websocket. One goroutine reads
// OP messages, a writer goroutine drains the outbound queue, and every
// operation runs against the engine with the player identity bound at
// handshake.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"stellardominion.io/internal/protocol"
	"stellardominion.io/internal/sim/empire"
	"stellardominion.io/internal/sim/engine"
)

// opsPerSecond bounds how fast one connection may submit operations;
// opsBurst absorbs short UI bursts.
const (
	opsPerSecond = 5
	opsBurst     = 10

	outQueueLen = 16
)

type Server struct {
	engine *engine.Engine
}

func NewServer(e *engine.Engine) *Server {
	return &Server{engine: e}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		player := s.handshake(conn)
		if player == nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan []byte, outQueueLen)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		limiter := rate.NewLimiter(opsPerSecond, opsBurst)

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeOp {
				continue
			}
			op, err := protocol.DecodeOp(msg)
			if err != nil || op.ProtocolVersion != protocol.Version {
				send(ctx, out, protocol.NewError(op.ID, protocol.ErrProtoBadRequest, "malformed OP"))
				continue
			}
			if !protocol.IsKnownOp(op.Kind) {
				send(ctx, out, protocol.NewError(op.ID, protocol.ErrProtoBadRequest, "unknown op kind "+op.Kind))
				continue
			}
			if !limiter.Allow() {
				send(ctx, out, protocol.NewError(op.ID, protocol.ErrRateLimit, "slow down"))
				continue
			}
			send(ctx, out, s.dispatch(ctx, player.ID, op))
		}
	}
}

// handshake reads HELLO, resolves (or registers) the player, and answers
// with WELCOME. A nil return means the connection was refused.
func (s *Server) handshake(conn *websocket.Conn) *empire.Player {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		refuse(conn, "expected HELLO")
		return nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil
	}
	if hello.ProtocolVersion != protocol.Version {
		refuse(conn, "bad protocol_version")
		return nil
	}
	name := strings.TrimSpace(hello.PlayerName)
	if name == "" {
		refuse(conn, "empty player_name")
		return nil
	}

	player, err := s.engine.Player(name)
	if err != nil {
		if !errors.Is(err, empire.ErrNotFound) {
			log.Printf("[ws] lookup %q: %v", name, err)
			return nil
		}
		player, err = s.engine.Register(name)
		if err != nil {
			log.Printf("[ws] register %q: %v", name, err)
			refuse(conn, "registration failed")
			return nil
		}
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        player.ID,
		PlayerName:      player.Name,
		SessionID:       uuid.NewString(),
		BalanceDigest:   s.engine.Balance().Digest(),
		TurnMinutes:     s.engine.Balance().TurnMinutes,
		ServerTime:      time.Now().UTC().Format(time.RFC3339),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil
	}
	log.Printf("[ws] session: player=%d name=%q", player.ID, player.Name)
	return player
}

func (s *Server) dispatch(ctx context.Context, playerID int64, op protocol.OpMsg) protocol.ResultMsg {
	var (
		data any
		err  error
	)
	switch op.Kind {
	case protocol.OpStatus:
		data, err = s.engine.Status(ctx, playerID)
	case protocol.OpTrain:
		data, err = s.engine.Train(ctx, playerID, toOrder(op.Units))
	case protocol.OpDisband:
		err = s.engine.Disband(ctx, playerID, toOrder(op.Units))
	case protocol.OpAutoTrain:
		data, err = s.engine.AutoTrain(ctx, playerID)
	case protocol.OpAttack:
		data, err = s.engine.Attack(ctx, playerID, op.TargetID, op.Turns)
	case protocol.OpSpy:
		data, err = s.engine.Spy(ctx, playerID, op.TargetID, op.Spies)
	case protocol.OpDeposit:
		err = s.engine.Deposit(ctx, playerID, op.Amount)
	case protocol.OpWithdraw:
		err = s.engine.Withdraw(ctx, playerID, op.Amount)
	case protocol.OpBuyVault:
		err = s.engine.BuyVault(ctx, playerID)
	case protocol.OpLeaderboard:
		data, err = s.engine.Leaderboard(op.Limit)
	case protocol.OpBattleHistory:
		data, err = s.engine.BattleHistory(playerID, op.Limit)
	case protocol.OpBankHistory:
		data, err = s.engine.BankHistory(playerID, op.Limit)
	default:
		return protocol.NewError(op.ID, protocol.ErrProtoBadRequest, "unknown op kind "+op.Kind)
	}
	if err != nil {
		code := protocol.CodeForError(err)
		if code == protocol.ErrInternal {
			log.Printf("[ws] op %s player=%d: %v", op.Kind, playerID, err)
			return protocol.NewError(op.ID, code, "internal error")
		}
		return protocol.NewError(op.ID, code, err.Error())
	}
	return protocol.NewResult(op.ID, data)
}

func toOrder(units map[string]int64) empire.TrainOrder {
	o := empire.TrainOrder{}
	for k, v := range units {
		o[empire.UnitKind(k)] = v
	}
	return o
}

func send(ctx context.Context, out chan []byte, msg protocol.ResultMsg) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case <-ctx.Done():
	case out <- b:
	default:
		// Queue full: the client is not draining results. Drop rather than
		// block the reader.
	}
}

func refuse(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
