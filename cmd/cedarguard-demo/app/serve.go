package app

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cedarguard/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a long-lived process exposing /healthz, /metrics, and /decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer rt.Close()

		log := logger.WithComponent("cedarguard-demo.serve")

		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		mux.Handle("/metrics", rt.metrics.Handler())
		mux.HandleFunc("/decisions", func(w http.ResponseWriter, r *http.Request) {
			limit := 100
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(rt.recent.List(limit))
		})

		server := &http.Server{
			Addr:              rt.cfg.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Info("cedarguard-demo listening", "addr", rt.cfg.ListenAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("server failed", "error", err)
			}
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	},
}
