package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"e2e_station/internal/config"
	"e2e_station/internal/model"
	"e2e_station/internal/protocol/sealer"
)

var (
	configPath string
	debug      bool
)

func main() {
	root := &cobra.Command{
		Use:           "station",
		Short:         "Relay station for end-to-end encrypted messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "station.yaml", "path to the YAML config file")

	root.AddCommand(serveCmd(), idCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// id prints the station identifier, creating the key file if needed.
func idCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Print the station identifier and search number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			keys, seed, err := sealer.LoadOrCreate(cfg.Station.KeyFile, cfg.Station.Name)
			if err != nil {
				return err
			}
			meta := keys.Meta(seed, model.EntityStation)
			fmt.Fprintln(cmd.OutOrStdout(), meta.ID())
			fmt.Fprintln(cmd.OutOrStdout(), model.FormatNumber(meta.Number()))
			return nil
		},
	}
}
