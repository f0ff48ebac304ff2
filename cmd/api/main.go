package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"academy/internal/config"
	"academy/internal/database"
	"academy/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cfgFile string
	v       = config.New()
	rootCmd = &cobra.Command{
		Use:   "academy",
		Short: "Academy fee, tax and payment settlement service",
		Long: `academy runs the fee core of the academy: tax and penalty settings,
bank-transfer payment claims and their verification, and the scheduled sweep
that applies late fees, suspensions and reminders.

Without a subcommand it serves the HTTP API.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
}

// @title           Academy Fees API
// @version         1.0
// @description     Tax, penalty and payment settlement for the academy.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration and opens the logger and database every command needs.
func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := database.NewConnection(cfg.Database.Driver, cfg.Database.DataSource())
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("database connected", zap.String("driver", cfg.Database.Driver))

	return cfg, log, db, nil
}
