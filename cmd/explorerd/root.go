package main

import (
	"github.com/spf13/cobra"

	"github.com/tellor-io/layer-explorer/explorerClient/constant"
)

var nodeHome string

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "explorerd",
		Short:         "Tellor Layer explorer data daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&nodeHome, "home", constant.DefaultNodeHome, "Directory for config and data")

	InitRootCmd(rootCmd)

	return rootCmd
}
