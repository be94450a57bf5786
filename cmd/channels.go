package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Jezza/healthkube/internal/config"
	"github.com/Jezza/healthkube/internal/healthchecks"
)

// newChannelsCmd creates the command listing the project's notification
// integrations, so their IDs can be fed to `sync --integrations`.
func newChannelsCmd() *cobra.Command {
	var (
		configPath string
		hcKey      string
		hcURL      string
	)

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List the notification integrations of the project",
		Long: `Lists every notification integration (channel) registered on the
Healthchecks project, with the IDs accepted by 'sync --integrations'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if path == "" {
				var err error
				path, err = config.DefaultPath()
				if err != nil {
					return err
				}
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if hcKey != "" {
				cfg.API.Key = hcKey
			}
			if hcURL != "" {
				cfg.API.URL = hcURL
			} else if url := os.Getenv("HC_API_URL"); url != "" {
				cfg.API.URL = url
			}
			if cfg.API.Key == "" {
				return fmt.Errorf("no Healthchecks API key; set --hc-key or HC_API_KEY")
			}

			client, err := healthchecks.NewClient(cfg.API.URL, cfg.API.Key)
			if err != nil {
				return err
			}

			channels, err := client.ListChannels(cmd.Context())
			if err != nil {
				return err
			}

			writer := table.NewWriter()
			writer.SetOutputMirror(cmd.OutOrStdout())
			writer.AppendHeader(table.Row{"ID", "Name", "Kind"})
			for _, channel := range channels {
				writer.AppendRow(table.Row{channel.ID, channel.Name, channel.Kind})
			}
			writer.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file (default ~/.config/healthkube/config.yaml)")
	cmd.Flags().StringVar(&hcKey, "hc-key", os.Getenv("HC_API_KEY"), "Healthchecks read/write API key (env HC_API_KEY)")
	cmd.Flags().StringVar(&hcURL, "hc-url", "", "Healthchecks instance URL (env HC_API_URL)")
	return cmd
}
