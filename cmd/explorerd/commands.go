package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tellor-io/layer-explorer/explorerClient/config"
	"github.com/tellor-io/layer-explorer/explorerClient/core"
	"github.com/tellor-io/layer-explorer/explorerClient/logger"
	"github.com/tellor-io/layer-explorer/explorerClient/source"
)

// Set at build time with -ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func InitRootCmd(rootCmd *cobra.Command) {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(startCmd())
	rootCmd.AddCommand(queryCmd())
	rootCmd.AddCommand(versionCmd())
}

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to the home directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(nodeHome); err == nil && !force {
				return fmt.Errorf("config already exists in %s (use --force to overwrite)", nodeHome)
			}
			cfg, err := config.LoadDefaultConfig()
			if err != nil {
				return err
			}
			if err := config.Save(cfg, nodeHome); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", nodeHome)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	return cmd
}

func startCmd() *cobra.Command {
	var (
		graphqlEndpoint string
		rpcEndpoint     string
		port            int
		primary         string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the explorer data service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(nodeHome)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					return err
				}
				def, derr := config.LoadDefaultConfig()
				if derr != nil {
					return derr
				}
				cfg = *def
			}

			config.ApplyEnv(&cfg)
			if graphqlEndpoint != "" {
				cfg.CustomGraphQLEndpoint = graphqlEndpoint
			}
			if rpcEndpoint != "" {
				cfg.CustomRPCEndpoint = rpcEndpoint
			}
			if port != 0 {
				cfg.QueryServerPort = port
			}
			if primary != "" {
				src, err := source.Parse(primary)
				if err != nil {
					return err
				}
				cfg.PrimarySource, cfg.FallbackSource = string(src), string(otherSource(src))
			}
			if err := config.Validate(&cfg); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			log := logger.Init(cfg)
			client, err := core.New(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return client.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&graphqlEndpoint, "graphql-endpoint", "", "Custom GraphQL endpoint tried before the configured list")
	cmd.Flags().StringVar(&rpcEndpoint, "rpc-endpoint", "", "Custom RPC endpoint tried before the configured list")
	cmd.Flags().IntVar(&port, "port", 0, "Query server port")
	cmd.Flags().StringVar(&primary, "primary", "", "Primary data source (graphql|rpc)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print explorerd version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Name:    %s\n", "explorerd")
			fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit:  %s\n", Commit)
		},
	}
}

func otherSource(src source.Type) source.Type {
	if src == source.RPC {
		return source.GraphQL
	}
	return source.RPC
}
