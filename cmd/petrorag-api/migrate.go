package main

import (
	"github.com/petrorag/petrorag/internal/config"
	"github.com/petrorag/petrorag/internal/store"
	"github.com/petrorag/petrorag/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the db",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logLvl, err := zap.ParseAtomicLevel(cfg.Service.LogLevel)
		if err != nil {
			logLvl = zap.NewAtomicLevelAt(zap.InfoLevel)
		}
		logger := log.InitLog(logLvl)
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalf("initializing data store: %v", err)
		}

		dataStore := store.NewStore(db)
		defer dataStore.Close()

		if err := dataStore.InitialMigration(); err != nil {
			zap.S().Fatalf("running initial migration: %v", err)
		}

		zap.S().Info("Db migrated")
		return nil
	},
}
