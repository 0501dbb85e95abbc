package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"e2e_station/internal/protocol/sealer"
	"e2e_station/internal/service/app"
	"e2e_station/internal/utils/log"
)

func main() {
	var (
		stationURL string
		keyFile    string
	)

	root := &cobra.Command{
		Use:          "client <name>",
		Short:        "Terminal client for an e2e station",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if keyFile == "" {
				keyFile = name + ".key"
			}

			// the UI owns the terminal
			if err := log.Init("error", false); err != nil {
				return err
			}

			keys, seed, err := sealer.LoadOrCreate(keyFile, name)
			if err != nil {
				return fmt.Errorf("load keys: %w", err)
			}
			client, err := app.NewClient(stationURL, keys, seed)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := app.NewApp(client)
			go func() {
				<-ctx.Done()
				a.Stop()
			}()
			return a.Run(ctx)
		},
	}
	root.Flags().StringVar(&stationURL, "station", "ws://localhost:9090", "station address")
	root.Flags().StringVar(&keyFile, "keys", "", "key file (default <name>.key)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
