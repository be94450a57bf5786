package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/Jezza/healthkube/internal/config"
	"github.com/Jezza/healthkube/internal/healthchecks"
	"github.com/Jezza/healthkube/internal/kube"
	"github.com/Jezza/healthkube/internal/reconcile"
	"github.com/Jezza/healthkube/internal/target"
	"github.com/Jezza/healthkube/pkg/logging"
)

// partialFailureError signals that the pass finished but some pairs
// failed; root maps it to ExitCodePartial.
type partialFailureError struct {
	failed int
}

func (e *partialFailureError) Error() string {
	return fmt.Sprintf("%d pair(s) failed to reconcile", e.failed)
}

type syncOptions struct {
	configPath string

	hcKey string
	hcURL string

	envKey          string
	timezone        string
	graceMargin     time.Duration
	tagRank         int
	suspendedPolicy string
	concurrency     int

	integrations    []string
	allIntegrations bool

	deleteOrphans bool
	dryRun        bool
	quiet         bool
}

func newSyncCmd() *cobra.Command {
	opts := &syncOptions{}

	cmd := &cobra.Command{
		Use:   "sync [flags] TARGET...",
		Short: "Reconcile CronJobs against Healthchecks monitors",
		Long: `Runs one reconciliation pass over the given targets.

Each TARGET selects a kubeconfig context and optionally namespaces:

  prod              all namespaces of context "prod"
  prod:batch        namespace "batch" of context "prod"
  prod:batch,etl    two namespaces of context "prod"

For every CronJob found, sync ensures a check with a matching name,
schedule, grace period, and notification channels exists remotely, then
writes the check's ping ID into the job's environment (--env-key).
Checks without a matching CronJob are reported as orphans and deleted
only with --delete-orphans.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default ~/.config/healthkube/config.yaml)")
	flags.StringVar(&opts.hcKey, "hc-key", os.Getenv("HC_API_KEY"), "Healthchecks read/write API key (env HC_API_KEY)")
	flags.StringVar(&opts.hcURL, "hc-url", "", "Healthchecks instance URL (env HC_API_URL)")
	flags.StringVar(&opts.envKey, "env-key", os.Getenv("HK_ENV_KEY"), "Environment variable to receive the ping ID (env HK_ENV_KEY); empty disables write-back")
	flags.StringVar(&opts.timezone, "timezone", "", "Timezone for check schedules")
	flags.DurationVar(&opts.graceMargin, "grace-margin", 0, "Safety margin added to the derived grace period")
	flags.IntVar(&opts.tagRank, "rank", -1, "Name segments occurring in more than this many jobs become tags")
	flags.StringVar(&opts.suspendedPolicy, "suspended-policy", "", "How to treat suspended cronjobs: skip or pause")
	flags.IntVar(&opts.concurrency, "concurrency", 0, "Max parallel fetches and reconciliations")
	flags.StringSliceVar(&opts.integrations, "integrations", nil, "Integration IDs to assign to every check")
	flags.BoolVar(&opts.allIntegrations, "all-integrations", false, "Assign every integration registered on the project")
	flags.BoolVar(&opts.deleteOrphans, "delete-orphans", false, "Delete checks that match no scanned cronjob")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Report the plan without mutating anything")
	flags.BoolVar(&opts.quiet, "quiet", false, "Suppress the progress spinner and summary table")
	cmd.MarkFlagsMutuallyExclusive("integrations", "all-integrations")

	return cmd
}

// resolveOptions layers flags over the config file over built-in
// defaults and returns the effective reconciler options plus client
// settings.
func resolveOptions(opts *syncOptions) (config.Config, error) {
	path := opts.configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Config{}, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if opts.hcKey != "" {
		cfg.API.Key = opts.hcKey
	}
	if opts.hcURL != "" {
		cfg.API.URL = opts.hcURL
	} else if url := os.Getenv("HC_API_URL"); url != "" {
		cfg.API.URL = url
	}
	if opts.envKey != "" {
		cfg.EnvKey = opts.envKey
	}
	if opts.timezone != "" {
		cfg.Timezone = opts.timezone
	}
	if opts.graceMargin > 0 {
		cfg.GraceMargin = config.Duration(opts.graceMargin)
	}
	if opts.tagRank >= 0 {
		cfg.TagRank = opts.tagRank
	}
	if opts.suspendedPolicy != "" {
		cfg.SuspendedPolicy = opts.suspendedPolicy
	}
	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if cfg.API.Key == "" {
		return config.Config{}, fmt.Errorf("no Healthchecks API key; set --hc-key or HC_API_KEY")
	}
	return cfg, nil
}

func runSync(ctx context.Context, opts *syncOptions, targets []string) error {
	specs, err := target.Resolve(targets)
	if err != nil {
		return err
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return err
	}

	client, err := healthchecks.NewClient(cfg.API.URL, cfg.API.Key)
	if err != nil {
		return err
	}

	stop := startSpinner(opts.quiet, " Fetching cronjobs and checks...")

	channels, err := resolveChannels(ctx, client, opts)
	if err != nil {
		stop()
		return err
	}

	fleet := kube.NewFleet()
	workloads, err := kube.Scan(ctx, fleet, specs, cfg.EnvKey, cfg.Concurrency)
	if err != nil {
		stop()
		return err
	}

	checks, err := client.ListChecks(ctx)
	if err != nil {
		stop()
		return err
	}
	stop()

	correspondence, err := reconcile.Build(workloads, checks)
	if err != nil {
		return err
	}

	reconciler := reconcile.New(client, fleet, reconcile.Options{
		EnvKey:          cfg.EnvKey,
		Timezone:        cfg.Timezone,
		GraceMargin:     time.Duration(cfg.GraceMargin),
		Channels:        channels,
		TagRank:         cfg.TagRank,
		SuspendedPolicy: reconcile.SuspendedPolicy(cfg.SuspendedPolicy),
		DeleteOrphans:   opts.deleteOrphans,
		DryRun:          opts.dryRun,
		Concurrency:     cfg.Concurrency,
	})

	result := reconciler.Run(ctx, correspondence)

	if !opts.quiet {
		printSummary(result, opts.dryRun)
	}

	if result.Failed() {
		failed := 0
		for _, outcome := range result.Outcomes {
			if outcome.Err != nil {
				failed++
			}
		}
		for _, orphan := range result.Orphans {
			if orphan.Err != nil {
				failed++
			}
		}
		return &partialFailureError{failed: failed}
	}
	return nil
}

// resolveChannels expands --all-integrations into the project's full
// channel list, or passes the explicit --integrations IDs through.
func resolveChannels(ctx context.Context, client *healthchecks.Client, opts *syncOptions) ([]string, error) {
	if !opts.allIntegrations {
		return opts.integrations, nil
	}

	channels, err := client.ListChannels(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(channels))
	for _, channel := range channels {
		ids = append(ids, channel.ID)
	}
	sort.Strings(ids)
	logging.Info("Sync", "Using all %d registered integrations", len(ids))
	return ids, nil
}

func startSpinner(quiet bool, suffix string) func() {
	if quiet {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = suffix
	s.Writer = os.Stderr
	s.Start()
	return s.Stop
}

func printSummary(result reconcile.Result, dryRun bool) {
	writer := table.NewWriter()
	writer.SetOutputMirror(os.Stdout)
	writer.AppendHeader(table.Row{"Check", "Action", "Ping ID", "Result"})

	for _, outcome := range result.Outcomes {
		status := text.FgGreen.Sprint("ok")
		if outcome.Err != nil {
			status = text.FgRed.Sprint(outcome.Err.Error())
		} else if outcome.Patched {
			status = text.FgGreen.Sprint("ok (env patched)")
		}
		writer.AppendRow(table.Row{outcome.Key, outcome.Action, outcome.PingID, status})
	}
	for _, orphan := range result.Orphans {
		status := text.FgYellow.Sprint("reported")
		switch {
		case orphan.Err != nil:
			status = text.FgRed.Sprint(orphan.Err.Error())
		case orphan.Deleted:
			status = text.FgRed.Sprint("deleted")
		}
		writer.AppendRow(table.Row{orphan.Check.Name, reconcile.ActionOrphan, orphan.Check.ID(), status})
	}

	if dryRun {
		fmt.Println("Dry run: no changes were made.")
	}
	writer.Render()
}
