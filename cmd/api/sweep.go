package main

import (
	"encoding/json"
	"fmt"
	"time"

	"academy/internal/notify"
	"academy/internal/repository"
	"academy/internal/service"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Apply late fees, suspensions and reminders once",
		Long: `Run the automation rules over every financial account and exit.

Intended for a daily scheduler. Notifications go to the log; each overdue
period is charged at most once, so re-running a day is safe.`,
		RunE: runSweep,
	}
	cmd.Flags().String("as-of", "", "evaluation date YYYY-MM-DD (default today)")
	return cmd
}

func runSweep(cmd *cobra.Command, _ []string) error {
	asOf := time.Now()
	if raw, _ := cmd.Flags().GetString("as-of"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return fmt.Errorf("invalid --as-of: %w", err)
		}
		asOf = t
	}

	_, log, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	activityService := service.NewActivityService(repository.NewActivityRepository(db), log)
	settingsService := service.NewSettingsService(
		repository.NewSettingsRepository(db),
		repository.NewPenaltySettingRepository(db),
		activityService,
	)
	financialService := service.NewFinancialService(
		repository.NewFinancialStatusRepository(db),
		repository.NewTransactionManager(db),
		settingsService,
		activityService,
		notify.LogNotifier{Logger: log},
		log,
	)

	report, err := financialService.Sweep(cmd.Context(), asOf)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
