// Package cmd wires the ticket-service command line.
package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"field-ticket-service/internal/config"
	"field-ticket-service/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "ticket-service",
	Short:         "Field-service ticketing API: tickets, visits, assignments and analytics",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func Execute() error {
	return rootCmd.Execute()
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config: %w", err)
	}
	return cfg, logger.New(cfg.Environment, cfg.LogLevel), nil
}
