package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httpDelivery "github.com/kitchenstock/scanner/internal/delivery/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scan HTTP server",
	Long: `Start the HTTP server used by the web app and the mobile shell.

Endpoints:
  GET  /health
  POST /api/v1/scans/delivery   multipart: image, optional catalog (JSON)
  POST /api/v1/scans/recipe     multipart: image, optional catalog (JSON)
  POST /api/v1/scans/confirm    JSON: {catalog, items}
  GET  /api/v1/corrections
  GET  /api/v1/corrections/lookup?name=
  POST /api/v1/corrections      JSON: {rawName, productId, productName}

Send "Accept: text/event-stream" on scan endpoints to receive progress events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		log.Printf("Starting kitchenscan v1.0.0")
		log.Printf("Environment: %s", cfg.Server.Environment)
		log.Printf("Port: %s", cfg.Server.Port)
		log.Printf("Store Type: %s", cfg.Store.Type)

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if a.catalog != nil {
			if cfg.Catalog.Watch {
				if err := a.catalog.Watch(ctx); err != nil {
					return err
				}
			}
		} else {
			log.Printf("WARNING: no catalog file configured, scan requests must send their own catalog")
		}

		handler := httpDelivery.NewHandler(a.scans, a.corrections, a.catalogProvider())
		router := httpDelivery.SetupRouter(cfg, handler)

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
			Handler: router,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Printf("Server listening on %s", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server failed: %w", err)
		case <-ctx.Done():
			log.Printf("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}
