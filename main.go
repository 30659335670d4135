package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/ticket-vote/auth"
	"github.com/danielhkuo/ticket-vote/cliparse"
	"github.com/danielhkuo/ticket-vote/db"
	"github.com/danielhkuo/ticket-vote/ledger"
	"github.com/danielhkuo/ticket-vote/metrics"
	"github.com/danielhkuo/ticket-vote/middleware"
	"github.com/danielhkuo/ticket-vote/router"
)

func main() {
	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	if cfg.PrintAdminKey {
		fmt.Println(auth.GenerateAdminKey(auth.AdminScope, cfg.AdminKeySalt))
		return
	}

	if err := run(cfg); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg cliparse.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect and migrate
	conn, err := db.Connect(cfg.DatabaseType, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database setup failed: %w", err)
	}
	store := db.NewStore(conn)
	defer store.Close()
	slog.Info("Database schema ready", "type", cfg.DatabaseType)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	l, err := ledger.Open(ctx,
		ledger.WithStore(store),
		ledger.WithRecorder(m),
		ledger.WithLogger(slog.Default()),
		ledger.WithTicketCap(cfg.Economy.TicketCap),
		ledger.WithMaxPurchase(cfg.Economy.MaxPurchase),
	)
	if err != nil {
		return err
	}
	slog.Info("Ledger ready",
		"pot", humanize.CommafWithDigits(potFloat(l), 2),
		"ticket_cap", cfg.Economy.TicketCap,
		"max_purchase", cfg.Economy.MaxPurchase,
	)

	server := &http.Server{
		Handler:           middleware.CORS(router.NewRouter(l, cfg, m.Handler())),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		sweep(gctx, l, cfg.Economy.SweepInterval)
		return nil
	})

	err = g.Wait()
	slog.Info("Server closed")
	return err
}

// sweep persists time-driven proposal transitions until ctx ends.
func sweep(ctx context.Context, l *ledger.Ledger, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.Sweep(ctx)
			if err != nil {
				slog.Warn("proposal sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("proposal sweep", "transitions", n)
			}
		}
	}
}

func potFloat(l *ledger.Ledger) float64 {
	f, _ := l.Pot().Float64()
	return f
}
