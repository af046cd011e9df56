package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbukum/segmentation/logger"
	"github.com/kbukum/segmentation/segmentation"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Connect to BigQuery and the activation transport and report their health",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := segmentation.NewService(*cfg, logger.GetGlobalLogger())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	startErr := svc.Start(ctx)
	report := svc.Report(ctx)
	if err := svc.Stop(ctx); err != nil {
		logger.WithComponent("cli").WithError(err).Warn("stop failed")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))

	if startErr != nil {
		return startErr
	}
	if !report.IsUp() {
		return fmt.Errorf("service is %s: %s", report.Status, strings.Join(report.Unhealthy(), ", "))
	}
	return nil
}
