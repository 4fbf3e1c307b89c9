// Package app wires configuration, logging, the document store and the
// transports together and runs them until a shutdown signal arrives.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/mapmyfamily/familyapi/internal/config"
	"github.com/mapmyfamily/familyapi/internal/db/jsondb"
	"github.com/mapmyfamily/familyapi/internal/db/memorystorage"
	"github.com/mapmyfamily/familyapi/internal/db/mongodb"
	"github.com/mapmyfamily/familyapi/internal/db/postgresdb"
	"github.com/mapmyfamily/familyapi/internal/db/storage"
	"github.com/mapmyfamily/familyapi/internal/grpcserver"
	"github.com/mapmyfamily/familyapi/internal/ipchecker"
	"github.com/mapmyfamily/familyapi/internal/logger"
	"github.com/mapmyfamily/familyapi/internal/metrics"
	"github.com/mapmyfamily/familyapi/internal/models"
	"github.com/mapmyfamily/familyapi/internal/router"
	"github.com/mapmyfamily/familyapi/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App holds everything needed to serve the family tree API.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	httpHandler http.Handler
	grpcServer  *grpc.Server
	grpcLis     net.Listener
}

// New loads the configuration, initialises the logger, opens the configured
// document store and builds the HTTP router and the optional gRPC server.
func New(optionsProto ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(optionsProto...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	checker, err := ipchecker.New(
		app.cfg.TrustedSubnet,
		ipchecker.WithTrustProxyHeaders(app.cfg.TrustProxyHeaders),
	)
	if err != nil {
		return nil, errors.Join(err, app.db.Close())
	}

	metricsManager := metrics.New()
	svc := service.New(app.db, service.WithMetrics(metricsManager))

	app.httpHandler = router.New(
		svc,
		router.WithCORSAllowedOrigin(app.cfg.CORSAllowedOrigin),
		router.WithGzip(app.cfg.GzipEnabled()),
		router.WithMetrics(metricsManager, checker.Middleware),
	)

	if app.cfg.GRPCAddr != "" {
		app.grpcServer, app.grpcLis, err = grpcserver.NewGRPCServer(
			app.cfg.GRPCAddr,
			grpcserver.NewHealthHandler(svc),
		)
		if err != nil {
			return nil, errors.Join(err, app.db.Close())
		}
	}

	return app, nil
}

// Run serves HTTP (and gRPC when configured) until SIGINT or SIGTERM, then
// shuts the servers down and closes the document store.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log.Infow("server running", "address", a.cfg.RunAddr, "storage", storageName(a.cfg))

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 2)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	if a.grpcServer != nil {
		logger.Log.Infow("gRPC server running", "address", a.grpcLis.Addr().String())
		go func() {
			serverErrCh <- a.grpcServer.Serve(a.grpcLis)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Log.Infow("received shutdown signal, closing the document store")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if a.grpcServer != nil {
			a.grpcServer.GracefulStop()
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Join(fmt.Errorf("server shutdown error: %w", err), a.db.Close())
		}

		return a.db.Close()

	case err := <-serverErrCh:
		if a.grpcServer != nil {
			a.grpcServer.Stop()
		}
		return errors.Join(fmt.Errorf("server error: %w", err), a.db.Close())
	}
}

// Close flushes the logger.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	switch {
	case cfg.MongoDBURI != "":
		return models.StorageTypeMongo
	case cfg.DatabaseDSN != "":
		return models.StorageTypePostgresql
	case cfg.DBFileName != "":
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func storageName(cfg *config.Config) string {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeMongo:
		return "mongodb"
	case models.StorageTypePostgresql:
		return "postgresql"
	case models.StorageTypeFile:
		return "file"
	}

	return "memory"
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypeMongo:
		return mongodb.New(
			context.Background(),
			cfg.MongoDBURI,
			cfg.MongoDBDatabase,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
