package main

import (
	"context"
	"errors"
	"fmt"
	errorpkg "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"log"
	"net/http"
	"nexdb/internal/backup"
	"nexdb/internal/config"
	"nexdb/internal/connection"
	"nexdb/internal/database"
	"nexdb/internal/eventbus"
	"nexdb/internal/firewall"
	"nexdb/internal/httphandlers"
	"nexdb/internal/manager"
	"nexdb/internal/metrics"
	"nexdb/internal/misc"
	"nexdb/internal/scheduler"
	"nexdb/internal/service"
	"nexdb/internal/storage"
	"nexdb/logger"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg := config.New()
	if err := logger.InitLogger(cfg.LogMode, logger.Options{File: cfg.LogFile, MaxSizeMB: 100, MaxBackups: 5}); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		return
	}
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, teardown, err := setup(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		logger.Info("serving http(s)", zap.String("addr", cfg.ListenAddr))
		var err error
		if cfg.HasTLSConfig() {
			err = srv.ListenAndServeTLS(cfg.ServerSSLCertFile, cfg.ServerSSLKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server closed: ", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	if err := teardown(); err != nil {
		logger.Error("teardown failed", zap.Error(err))
	}
}

func setup(ctx context.Context, cfg config.Config) (*http.Server, func() error, error) {
	key := cfg.EncryptionKey
	if key == "" {
		var err error
		if key, err = misc.LoadOrCreateKey(cfg.KeyFile()); err != nil {
			return nil, nil, err
		}
	}

	encryptor, err := misc.NewEncryptor(key)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	repos := database.New(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	eventBus := eventbus.New()

	uploader, err := storage.NewUploader(ctx, cfg.Remote)
	if err != nil {
		return nil, nil, err
	}

	credentials := service.NewCredentialStore(encryptor, repos.Servers)
	backupSvc := service.NewBackupService(service.BackupOptions{
		BackupDir:    cfg.Dump.BackupDir,
		Timeout:      cfg.Dump.Timeout,
		MinFreeBytes: cfg.Dump.MinFreeSpaceMB << 20,
		AutoUpload:   cfg.Remote.AutoUpload,
		Concurrency:  cfg.Dump.Concurrency,
	}, repos.Databases, repos.Schedules, credentials, service.NewRecordKeeper(repos.Backups),
		backup.NewExecutor(backup.Options{
			MysqldumpPath: cfg.Dump.MysqldumpPath,
			PgDumpPath:    cfg.Dump.PgDumpPath,
		}), uploader, eventBus, m)

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, nil, errorpkg.Wrap(err, "invalid scheduler timezone")
	}

	var (
		materializer scheduler.Materializer
		stop         = func() error { return nil }
	)
	switch cfg.Scheduler.Mode {
	case config.SchedulerModeInProcess:
		inprocess, err := scheduler.NewInProcess(loc, cfg.Scheduler.ConcurrentJobs, backupSvc.RunScheduled)
		if err != nil {
			return nil, nil, err
		}
		inprocess.Start(ctx)
		materializer, stop = inprocess, inprocess.Shutdown
	case config.SchedulerModeCrontab:
		crontab, err := scheduler.NewCrontab(scheduler.NewSystemTable(cfg.Scheduler.CrontabUser), cfg.Scheduler.CrontabCommand, loc)
		if err != nil {
			return nil, nil, err
		}
		materializer = crontab
	default:
		return nil, nil, fmt.Errorf("unknown scheduler mode %q", cfg.Scheduler.Mode)
	}

	scheduleSvc := service.NewScheduleService(repos.Schedules, repos.Databases, materializer, loc)
	if _, err := scheduleSvc.Reconcile(ctx); err != nil {
		logger.Warn("schedule reconciliation finished with errors", zap.Error(err))
	}

	if cfg.AccessKey == "" {
		logger.Warn("ACCESS_KEY is not set, the API accepts unauthenticated requests")
	}

	mn := manager.New(cfg.AccessKey, manager.Services{
		Projects:    service.NewProjectService(repos.Projects, repos.Servers),
		Credentials: credentials,
		Databases:   service.NewDatabaseService(repos.Servers, repos.Databases),
		Backups:     backupSvc,
		Schedules:   scheduleSvc,
	}, connection.NewTester(0), connection.NewProvisioner(0), uploader,
		firewall.NewManager(cfg.Firewall.Table, cfg.Firewall.Chain), repos.NetworkAccess)

	if err := mn.RestoreNetworkAccess(ctx); err != nil {
		logger.Warn("failed to restore network access", zap.Error(err))
	}

	routes := httphandlers.Routes(httphandlers.NewApiHandler(mn, eventBus), httphandlers.RouteOptions{
		Metrics:     m,
		Gatherer:    registry,
		CORSOrigins: cfg.CORSOrigins,
	})

	return &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           routes,
			ReadHeaderTimeout: 10 * time.Second,
		}, func() error {
			err := stop()
			sqlDB, _ := db.DB()
			if sqlDB != nil {
				err = errors.Join(err, sqlDB.Close())
				logger.Info("DB Closed")
			}
			return err
		}, nil
}
