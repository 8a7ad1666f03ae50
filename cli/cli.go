// Package cli implements the kestrel command line interface.
package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kestrel/config"
	"kestrel/domain/book"
	"kestrel/sched"
	"kestrel/service"
)

// Version is stamped at build time.
var Version = "0.1.0"

// New builds the root command.
func New() *cobra.Command {
	root := &cobra.Command{
		Use:           "kestrel",
		Short:         "kestrel - order book, task scheduler and resource pool engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := New().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kestrel:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "kestrel", Version)
		},
	}
}

func newRunCmd() *cobra.Command {
	var cfgPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine with a demo order flow",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Default()
			if cfgPath != "" {
				var err error
				if cfg, err = config.Load(cfgPath); err != nil {
					return err
				}
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config file")
	return cmd
}

func run(cfg config.Config) error {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	// ---------------- Domain ----------------

	b, err := book.New(cfg.Book.MaxPrice, cfg.Book.Increment)
	if err != nil {
		return err
	}
	eng := service.NewEngine(b, log, nil)

	// ---------------- Scheduler ----------------

	s := sched.New(time.Now(),
		sched.WithLogger(log),
		sched.WithMaxDuration(cfg.Scheduler.MaxDuration.Std()),
		sched.WithMinSlack(cfg.Scheduler.MinSlack.Std()),
		sched.WithExecutor(eng.ExecuteTask),
		sched.WithObserver(func(sched.Task) { eng.Metrics().TaskExecuted() }),
	)
	defer s.Close()

	if _, err := eng.StartDepthJob(s, cfg.Scheduler.DepthInterval.Std()); err != nil {
		return err
	}

	// ---------------- Metrics ----------------

	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", eng.Metrics().Handler())
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server exited", zap.Error(err))
			}
		}()
		defer srv.Close()
		log.Info("metrics listening", zap.String("addr", cfg.Metrics.Listen))
	}

	// ---------------- Demo flow ----------------

	if err := demoFlow(eng, log); err != nil {
		return err
	}

	// Run until the scheduler's window expires or we are interrupted.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-s.Done():
		log.Info("scheduler window elapsed, shutting down")
	case sig := <-sigCh:
		log.Info("signal received, shutting down", zap.String("signal", sig.String()))
	}
	return nil
}

// demoFlow seeds the book with a small crossing scenario so a bare
// `kestrel run` has something to show on /metrics.
func demoFlow(eng *service.Engine, log *zap.Logger) error {
	mid := int64(100)

	for i := int64(1); i <= 3; i++ {
		if _, err := eng.PlaceOrder(mid-i, 10*i, true); err != nil {
			return err
		}
		if _, err := eng.PlaceOrder(mid+i, 10*i, false); err != nil {
			return err
		}
	}

	// Cross the spread once.
	id, err := eng.PlaceOrder(mid+1, 5, true)
	if err != nil {
		return err
	}
	_, st := eng.OrderStatus(id)

	l1 := eng.TopOfBook()
	log.Info("demo flow seeded",
		zap.Int64("crossed_filled", st.FilledSize),
		zap.Float64("crossed_avg", st.AveragePrice),
		zap.Int64("best_bid", l1.BestBid.Price),
		zap.Int64("best_offer", l1.BestOffer.Price))
	return nil
}
