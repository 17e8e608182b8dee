package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/soltrade/internal/config"
	"github.com/rovshanmuradov/soltrade/internal/dex/bonk"
	"github.com/rovshanmuradov/soltrade/internal/dex/pumpfun"
	"github.com/rovshanmuradov/soltrade/internal/dex/pumpswap"
	"github.com/rovshanmuradov/soltrade/internal/dex/raydiumamm"
	"github.com/rovshanmuradov/soltrade/internal/dex/raydiumcpmm"
	"github.com/rovshanmuradov/soltrade/internal/events"
	"github.com/rovshanmuradov/soltrade/internal/logger"
	"github.com/rovshanmuradov/soltrade/internal/stream"
	"github.com/rovshanmuradov/soltrade/internal/ui"
)

// eventBuffer absorbs bursts between the dispatcher and the TUI frame loop.
const eventBuffer = 512

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.WebSocketURL == "" {
		log.Fatalf("ws_url is required for the monitor")
	}

	// Stdout belongs to bubbletea, so logs go into a ring buffer that
	// spills to a file.
	spillPath := cfg.LogFile
	if spillPath == "" {
		spillPath = "logs/monitor.log"
	}
	buffer, err := logger.NewLogBuffer(1024, spillPath, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to open log buffer: %v", err)
	}
	appLogger, err := logger.NewTUI(cfg.DebugLogging, buffer)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() {
		_ = appLogger.Sync()
		_ = buffer.Close()
	}()

	appLogger.Info("Starting event monitor", zap.String("ws_url", cfg.WebSocketURL))

	dispatcher := events.NewDispatcher(appLogger, 256)

	// The feed never blocks dispatch: a table that cannot keep up drops
	// rows instead of stalling the stream.
	feed := make(chan *events.UnifiedEvent, eventBuffer)
	var droppedRows atomic.Uint64
	sub, err := dispatcher.SubscribeFunc(func(_ context.Context, ev *events.UnifiedEvent) error {
		select {
		case feed <- ev:
		default:
			droppedRows.Add(1)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	listener, err := stream.NewListener(stream.Options{
		URL:        cfg.WebSocketURL,
		Programs:   watchPrograms(),
		Commitment: cfg.CommitmentType(),
		Sink:       dispatcher,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("Failed to create listener: %v", err)
	}

	streamCtx, cancel := context.WithCancel(rootCtx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(streamCtx)
	group.Go(func() error {
		return listener.Run(groupCtx)
	})

	program := tea.NewProgram(
		ui.NewMonitor(feed, listener.Stats, appLogger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	done := make(chan error, 1)
	go func() {
		_, err := program.Run()
		done <- err
	}()

	select {
	case <-rootCtx.Done():
		program.Quit()
		<-done
	case err := <-done:
		if err != nil {
			appLogger.Error("TUI failed", zap.Error(err))
		}
	}

	// Stop the stream first, then let the dispatcher drain its queues.
	cancel()
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		appLogger.Warn("Listener stopped with error", zap.Error(err))
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Dispatcher shutdown incomplete", zap.Error(err))
	}

	notifications, dispatched := listener.Stats()
	appLogger.Info("Monitor stopped",
		zap.Uint64("notifications", notifications),
		zap.Uint64("dispatched", dispatched),
		zap.Uint64("dropped_rows", droppedRows.Load()))

	fmt.Printf("event log: %s\n", spillPath)
}

func watchPrograms() []solana.PublicKey {
	return []solana.PublicKey{
		pumpfun.ProgramID,
		pumpswap.ProgramID,
		bonk.ProgramID,
		raydiumcpmm.ProgramID,
		raydiumamm.ProgramID,
	}
}
