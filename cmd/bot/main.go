// Command bot is a smoke client: it connects, registers, trains what it
// can afford, pokes the leaderboard and attacks a target if one is given.
// Useful for exercising a running server end to end.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"stellardominion.io/internal/protocol"
)

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "bot", "player name")
		target = flag.Int64("target", 0, "player id to attack (0 = no attack)")
		every  = flag.Duration("every", 30*time.Second, "interval between op rounds")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	_, msg, err := conn.ReadMessage()
	if err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil {
		logger.Fatalf("decode WELCOME: %v", err)
	}
	logger.Printf("WELCOME player_id=%d turn_minutes=%d digest=%s",
		welcome.PlayerID, welcome.TurnMinutes, welcome.BalanceDigest[:12])

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	// Reader goroutine: log every RESULT.
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var res protocol.ResultMsg
			if err := json.Unmarshal(msg, &res); err != nil {
				continue
			}
			if res.Ok {
				logger.Printf("RESULT %s ok", res.OpID)
			} else {
				logger.Printf("RESULT %s %s: %s", res.OpID, res.Code, res.Message)
			}
		}
	}()

	t := time.NewTicker(*every)
	defer t.Stop()
	seq := 0
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		seq++
		round(conn, seq, *target)
	}
}

func round(conn *websocket.Conn, seq int, target int64) {
	op := func(kind string, mutate func(*protocol.OpMsg)) {
		m := protocol.OpMsg{
			Type:            protocol.TypeOp,
			ProtocolVersion: protocol.Version,
			ID:              fmt.Sprintf("op-%d-%s", seq, kind),
			Kind:            kind,
		}
		if mutate != nil {
			mutate(&m)
		}
		_ = conn.WriteJSON(m)
	}

	op(protocol.OpStatus, nil)
	op(protocol.OpAutoTrain, nil)
	op(protocol.OpLeaderboard, func(m *protocol.OpMsg) { m.Limit = 10 })
	if target > 0 {
		op(protocol.OpAttack, func(m *protocol.OpMsg) {
			m.TargetID = target
			m.Turns = 1
		})
	}
}
