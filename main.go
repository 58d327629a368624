package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gosuri/uiprogress"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	configEnvVar      = "SCHEMACHECK_CONFIG"
	defaultConfigFile = "schemacheck.toml"
)

var (
	configPath   string
	flagChecks   []string
	flagTables   []string
	flagFormat   string
	flagFailOn   string
	flagWorkers  int
	flagVerbose  bool
	flagProgress bool
)

var rootCmd = &cobra.Command{
	Use:           "schemacheck [config.toml]",
	Short:         "Cross-check table index, ER graph, DDL and detail docs for drift",
	Args:          cobra.MaximumNArgs(1),
	RunE:          runCheck,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List the available checks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, c := range defaultRegistry().Checks() {
			fmt.Fprintf(out, "%-26s %s\n", c.Name, c.Description)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "schemacheck "+versionString())
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "path to the TOML config file (default $"+configEnvVar+" or ./"+defaultConfigFile+")")
	f.StringSliceVar(&flagChecks, "checks", nil, "comma-separated checks to run (default: all)")
	f.StringSliceVar(&flagTables, "tables", nil, "comma-separated tables to check (default: every table in the index)")
	f.StringVar(&flagFormat, "format", "text", "report format: text or json")
	f.StringVar(&flagFailOn, "fail-on", "error", "lowest severity that makes the exit status non-zero: error or warning")
	f.IntVar(&flagWorkers, "workers", 0, "number of parallel workers (overrides config)")
	f.BoolVarP(&flagVerbose, "verbose", "v", false, "list SUCCESS and INFO findings in the text report")
	f.BoolVar(&flagProgress, "progress", false, "show a progress bar while checks run")

	rootCmd.AddCommand(checksCmd, versionCmd)
}

// exitCodeError carries a process exit status without a message of its own.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		var ec *exitCodeError
		if errors.As(err, &ec) {
			os.Exit(ec.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfigPath picks the config file: positional arg, then --config, then
// the environment, then ./schemacheck.toml when it exists.
func resolveConfigPath(args []string) (string, error) {
	switch {
	case len(args) > 0:
		return args[0], nil
	case configPath != "":
		return configPath, nil
	case os.Getenv(configEnvVar) != "":
		return os.Getenv(configEnvVar), nil
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile, nil
	}
	return "", fmt.Errorf("config file required: schemacheck <config.toml>, --config, or $%s", configEnvVar)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfgPath, err := resolveConfigPath(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if len(flagChecks) > 0 {
		cfg.Checks = trimNonEmpty(flagChecks)
	}
	if len(flagTables) > 0 {
		cfg.Tables = trimNonEmpty(flagTables)
	}
	if flagWorkers > 0 {
		cfg.Workers = flagWorkers
	}

	failOn, err := parseSeverity(flagFailOn)
	if err != nil || failOn < SeverityWarning {
		return fmt.Errorf("--fail-on must be one of: error, warning")
	}
	switch flagFormat {
	case "text", "json":
	default:
		return fmt.Errorf("--format must be one of: text, json")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	start := time.Now()

	log.Printf("schemacheck %s: schema source consistency check", versionString())
	log.Printf("config: root=%s workers=%d checks=%d tables=%d",
		cfg.resolvePath("."), cfg.Workers, len(cfg.Checks), len(cfg.Tables))

	orch := newOrchestrator(cfg, defaultRegistry())
	if flagProgress {
		stopBar := attachProgressBar(orch)
		defer stopBar()
	}

	var report *ConsistencyReport
	if len(cfg.Checks) == 0 {
		report, err = orch.RunAll(ctx)
	} else {
		report, err = orch.RunSpecificChecks(ctx, cfg.Checks)
	}
	if err != nil {
		return err
	}
	log.Printf("check completed in %s: %d error(s), %d warning(s)",
		time.Since(start).Round(time.Millisecond), report.Summary[SeverityError], report.Summary[SeverityWarning])

	out := cmd.OutOrStdout()
	if flagFormat == "json" {
		err = renderJSON(out, report)
	} else {
		err = renderText(out, report, flagVerbose)
	}
	if err != nil {
		return err
	}

	if report.AtLeast(failOn) {
		return &exitCodeError{code: 2}
	}
	return nil
}

// attachProgressBar feeds the orchestrator's progress into a terminal bar. The
// bar is created on the first update, once the unit count is known.
func attachProgressBar(orch *Orchestrator) func() {
	var once sync.Once
	var bar *uiprogress.Bar
	uiprogress.Start()
	orch.onProgress = func(done, total int) {
		once.Do(func() {
			bar = uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
			bar.PrependFunc(func(b *uiprogress.Bar) string {
				return fmt.Sprintf("checks %d/%d", b.Current(), total)
			})
		})
		bar.Incr()
	}
	return uiprogress.Stop
}
