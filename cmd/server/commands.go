package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/travel-journal/internal/auth"
	"github.com/sakif/travel-journal/internal/config"
	"github.com/sakif/travel-journal/internal/logger"
	"github.com/sakif/travel-journal/internal/server"
	"github.com/sakif/travel-journal/internal/service"
)

// newRootCmd builds the command tree. Running the root command with no
// subcommand starts the server.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "travel-journal",
		Short:        "Travel journal web application",
		Long:         "Share trips: register, log in, and post trips with an optional photo.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to a .env file (default: ./.env if present)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	var username, password string
	addUserCmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user account if it does not exist",
		Long: `Create a user with the given username and password.
An existing user is left unchanged, so the command is safe to re-run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAddUser(cmd, configPath, username, password)
		},
	}
	addUserCmd.Flags().StringVarP(&username, "username", "u", "", "username (required)")
	addUserCmd.Flags().StringVarP(&password, "password", "p", "", "password (required)")
	_ = addUserCmd.MarkFlagRequired("username")
	_ = addUserCmd.MarkFlagRequired("password")

	root.AddCommand(serveCmd, addUserCmd)
	return root
}

func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func runServe(ctx context.Context, configPath string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func runAddUser(cmd *cobra.Command, configPath, username, password string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	db, err := server.OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	users := service.NewAuthService(db, auth.NewPasswordService(), log)
	user, created, err := users.EnsureUser(cmd.Context(), username, password)
	if err != nil {
		return fmt.Errorf("adding user %q: %w", username, err)
	}

	if created {
		fmt.Fprintf(cmd.OutOrStdout(), "created user %q (id %d)\n", user.Username, user.ID)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "user %q already exists (id %d), left unchanged\n", user.Username, user.ID)
	}
	return nil
}
