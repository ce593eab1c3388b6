package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mobstore/compactor/internal/config"
	"github.com/mobstore/compactor/internal/health"
	"github.com/mobstore/compactor/internal/metrics"
	"github.com/mobstore/compactor/internal/server"
	"github.com/mobstore/compactor/internal/service"
	"github.com/mobstore/compactor/internal/storage/diskmanager"
	"github.com/mobstore/compactor/internal/storage/localfs"
	"github.com/mobstore/compactor/internal/storage/mobfile"
	"github.com/mobstore/compactor/internal/storage/scan"
	"go.uber.org/zap"
)

func main() {
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("archive_dir", cfg.Storage.ArchiveDir),
		zap.String("staging_dir", cfg.Storage.StagingDir),
		zap.String("table_dir", cfg.Storage.TableDir))

	for _, dir := range []string{cfg.Storage.ArchiveDir, cfg.Storage.StagingDir, cfg.Storage.TableDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("failed to create storage directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	nodeID := os.Getenv("NODE_ID")
	if nodeID == "" {
		nodeID = "mobcompactor-0"
	}

	m := metrics.NewMetrics(nodeID)

	fs := localfs.New()
	bulkload := localfs.NewBulkLoad(cfg.Storage.TableDir, logger)
	archival := localfs.NewArchival(cfg.Storage.ArchiveDir, logger)
	commit := service.NewCommitCoordinator(fs, bulkload, archival)

	writerFactory := mobfile.NewFactory(0.01)
	scannerFactory := scan.NewFactory()

	readerFor := func(path string) (service.Reader, error) {
		return mobfile.Open(path)
	}

	dm, err := diskmanager.NewDiskManager(diskmanager.DefaultConfig(cfg.Storage.StagingDir), logger)
	if err != nil {
		logger.Warn("disk manager unavailable, proceeding without circuit breaker", zap.Error(err))
		dm = nil
	}

	table := os.Getenv("MOB_TABLE")
	if table == "" {
		table = "default"
	}
	family := os.Getenv("MOB_FAMILY")
	if family == "" {
		family = "mob"
	}

	compactionSvc := service.NewCompactionService(service.CompactionServiceParams{
		FileSystem:  fs,
		ReaderFor:   readerFor,
		Scanners:    scannerFactory,
		Writers:     writerFactory,
		Commit:      commit,
		Archival:    archival,
		Disk:        dm,
		Table:       table,
		Family:      family,
		FamilyDir:   cfg.Storage.TableDir,
		StagingRoot: cfg.Storage.StagingDir,
		TempDir:     cfg.Storage.StagingDir,
		Config:      cfg.Compaction,
		Logger:      logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := service.NewScheduler(fs, compactionSvc, cfg.Storage.TableDir, cfg.Health.CheckInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	healthChecker := health.NewHealthChecker(&health.HealthCheckConfig{
		NodeID:     nodeID,
		StagingDir: cfg.Storage.StagingDir,
		ArchiveDir: cfg.Storage.ArchiveDir,
	}, logger)
	go healthChecker.Start(ctx)

	if cfg.Metrics.Enabled {
		metricsServer := server.NewMetricsServer(&server.MetricsServerConfig{
			Port:    cfg.Metrics.Port,
			DataDir: cfg.Storage.StagingDir,
		}, m, logger)
		if err := metricsServer.Start(); err != nil {
			logger.Error("failed to start metrics server", zap.Error(err))
		} else {
			defer metricsServer.Stop()
		}
	}

	logger.Info("mob compactor started", zap.String("node_id", nodeID), zap.String("table", table), zap.String("family", family))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down gracefully...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func initLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return cfg.Build()
}
