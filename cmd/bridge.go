package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lilymagnc/lilysync/internal/bridge"
	"github.com/lilymagnc/lilysync/internal/mapper"
	"github.com/lilymagnc/lilysync/internal/sqlstore"
)

var bridgeHealthPort int

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Mirror Firestore changes into Supabase in real time",
	Long: `Opens one watch per synchronized collection and replays every change
into the mapped Supabase table: inserts and updates become upserts by id,
deletes become deletes by id. Destination columns missing from the schema are
shed one at a time up to the configured ceiling. Runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := syncPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		ds, err := openDocstore(ctx)
		if err != nil {
			return err
		}
		defer ds.Close()

		b := bridge.New(ds, sqlstore.NewPostgres(pool), mapper.NewRegistry(), cfg.Bridge.MaxColumnRetries)

		mux := http.NewServeMux()
		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})
		mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(b.Stats())
		})

		port := bridgeHealthPort
		if port == 0 {
			port = cfg.Bridge.HealthPort
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		go func() {
			zap.L().Info("health endpoint listening", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zap.L().Error("health endpoint failed", zap.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Shutdown(ctx)
		}()

		if err := b.Run(ctx); err != nil {
			return eris.Wrap(err, "bridge")
		}

		snap := b.Stats()
		fmt.Printf("Bridge stopped: %d mirrored, %d deleted, %d skipped, %d failed\n",
			snap.Mirrored, snap.Deleted, snap.Skipped, snap.Failed)
		return nil
	},
}

func init() {
	bridgeCmd.Flags().IntVar(&bridgeHealthPort, "port", 0, "health endpoint port (default from config)")
	rootCmd.AddCommand(bridgeCmd)
}
