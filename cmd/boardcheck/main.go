package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/park285/grand-chess-realms/internal/config"
	"github.com/park285/grand-chess-realms/internal/board"
	"github.com/park285/grand-chess-realms/internal/board/wsdevice"
	"github.com/park285/grand-chess-realms/internal/obslog"
	"github.com/park285/grand-chess-realms/pkg/matchdto"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	watch := flag.Duration("watch", 10*time.Second, "how long to print board moves")
	flag.Parse()

	if cfg.Board.WSURL == "" {
		log.Fatal("BOARD_WS_URL is required")
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	bridge := board.NewBridge(
		wsdevice.Factory(cfg.Board.WSURL, wsdevice.WithLogger(logger)),
		board.Config{
			MaxAttempts:   cfg.Board.MaxAttempts,
			RetryDelay:    cfg.Board.RetryDelay,
			ProbeInterval: cfg.Board.ProbeInterval,
			GraceDelay:    cfg.Board.GraceDelay,
		},
		logger,
	)
	defer bridge.Disconnect()

	go func() {
		for err := range bridge.Errors() {
			log.Printf("board error: %v", err)
		}
	}()

	st := bridge.Connect(cfg.Board.Device, cfg.Board.AutoReconnect)
	log.Printf("board state: %s", st)

	ctx, cancel := context.WithTimeout(context.Background(), *watch)
	defer cancel()
	last := st
	for ctx.Err() == nil {
		if cur := bridge.State(); cur != last {
			log.Printf("board state: %s -> %s", last, cur)
			last = cur
		}
		if last == board.Failed {
			break
		}
		if !bridge.Connected() {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if ev, ok := bridge.GetMove(ctx, 500*time.Millisecond); ok {
			fmt.Printf("move %s piece=%s promotion=%t\n", ev.Move, ev.Piece.Kind, ev.NeedsPromotion)
		}
	}

	if snap, ok := bridge.LastSnapshot(); ok {
		log.Printf("board snapshot: fen=%s battery=%d", snap.FEN, snap.Battery)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(statusDTO(bridge.Status())); err != nil {
		logger.Warn("status_encode_failed", zap.Error(err))
	}
}

func statusDTO(s board.ConnectionStatus) matchdto.BoardStatus {
	return matchdto.BoardStatus{
		State:         s.State.String(),
		Connected:     s.Connected,
		SDKAvailable:  s.Available,
		LastError:     s.LastError,
		Attempts:      s.Attempts,
		MaxAttempts:   s.MaxAttempts,
		AutoReconnect: s.AutoReconnect,
		Device:        s.Device,
	}
}
