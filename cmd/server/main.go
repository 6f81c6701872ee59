package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	persistlog "stellardominion.io/internal/persistence/log"
	"stellardominion.io/internal/persistence/store"
	"stellardominion.io/internal/sim/balance"
	"stellardominion.io/internal/sim/engine"
	"stellardominion.io/internal/transport/ws"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		balancePath = flag.String("balance", "", "path to balance.yaml (default: ./configs/balance.yaml)")
		dbPath      = flag.String("db", "", "sqlite database path (default: <data>/game.db)")
		sweepEvery  = flag.Duration("sweep_every", time.Hour, "background vault sweep interval (0 to disable)")
		enablePprof = flag.Bool("pprof", false, "serve pprof endpoints")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	bp := strings.TrimSpace(*balancePath)
	if bp == "" {
		bp = filepath.Join("configs", "balance.yaml")
	}
	bal, err := balance.Load(bp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("balance not found (%s); using defaults", bp)
			bal = balance.FromEnv()
		} else {
			logger.Fatalf("load balance: %v", err)
		}
	}
	if err := bal.Validate(); err != nil {
		logger.Fatalf("balance: %v", err)
	}
	logger.Printf("balance digest %s", bal.Digest()[:12])

	dp := strings.TrimSpace(*dbPath)
	if dp == "" {
		dp = filepath.Join(*dataDir, "game.db")
	}
	st, err := store.Open(dp)
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()
	if err := st.SetMeta("balance_digest", bal.Digest()); err != nil {
		logger.Fatalf("record balance digest: %v", err)
	}

	battles := persistlog.NewBattleLogger(*dataDir)
	defer battles.Close()
	bank := persistlog.NewBankLogger(*dataDir)
	defer bank.Close()

	eng, err := engine.New(engine.Config{
		Store:   st,
		Balance: &bal,
		Battles: battles,
		Bank:    bank,
	})
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	if *sweepEvery > 0 {
		go runSweeper(ctx, eng, *sweepEvery, logger)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true})
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		ids, err := st.PlayerIDs()
		if err != nil {
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(rw, "# HELP stellardominion_players Live player rows.\n")
		fmt.Fprintf(rw, "# TYPE stellardominion_players gauge\n")
		fmt.Fprintf(rw, "stellardominion_players %d\n", len(ids))
	})
	if *enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(eng).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// runSweeper periodically reconciles everyone and moves over-cap credits
// into banks, so long-idle players do not sit above the vault cap between
// logins.
func runSweeper(ctx context.Context, eng *engine.Engine, every time.Duration, logger *log.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			moved, err := eng.SweepAll(ctx)
			if err != nil {
				logger.Printf("sweep: %v", err)
				continue
			}
			if moved > 0 {
				logger.Printf("sweep moved %d credits to banks", moved)
			}
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
