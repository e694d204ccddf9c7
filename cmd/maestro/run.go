package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"maestro/pkg/agent"
	"maestro/pkg/agent/llm"
	"maestro/pkg/agent/middleware/metrics"
	"maestro/pkg/config"
	"maestro/pkg/console"
	"maestro/pkg/logx"
	"maestro/pkg/monitor"
	"maestro/pkg/persistence"
	"maestro/pkg/pipeline"
	"maestro/pkg/scaffold"
	"maestro/pkg/search"
	"maestro/pkg/utils"
)

const keepLogFiles = 4

type runFlags struct {
	objective     string
	files         []string
	search        bool
	outputDir     string
	noScaffold    bool
	noTranscript  bool
	metricsOut    string
	metricsAddr   string
	maxIterations int
	tee           bool
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline on an objective",
		Long: `Run the orchestrator, sub-agent and refiner stages on an objective.
Without --objective on a terminal, maestro asks for files, the objective and
whether to use search.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)

			if cfg.Output.LogDir != "" {
				if err := logx.InitializeLogFile(cfg.Output.LogDir, keepLogFiles, flags.tee); err != nil {
					return fmt.Errorf("failed to initialize log file: %w", err)
				}
			}

			in, err := flags.input(cmd, cfg)
			if err != nil {
				return err
			}
			_, err = runObjective(cmd.Context(), cfg, in, runDeps{out: cmd.OutOrStdout(), metricsOut: flags.metricsOut})
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.objective, "objective", "o", "", "Objective to achieve")
	f.StringSliceVarP(&flags.files, "file", "f", nil, "Input file passed to the first sub-task (repeatable)")
	f.BoolVarP(&flags.search, "search", "s", false, "Augment sub-tasks with Tavily search")
	f.StringVar(&flags.outputDir, "output-dir", "", "Directory for project folders and transcripts")
	f.BoolVar(&flags.noScaffold, "no-scaffold", false, "Do not create the project folder and files")
	f.BoolVar(&flags.noTranscript, "no-transcript", false, "Do not write the exchange transcript")
	f.StringVar(&flags.metricsOut, "metrics-out", "", "Write Prometheus metrics to this file after the run")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "Serve /status and /metrics on this address during the run")
	f.IntVar(&flags.maxIterations, "max-iterations", 0, "Orchestrator calls before forcing refinement (0 = config value)")
	f.BoolVar(&flags.tee, "tee", false, "Also write file logs to stderr")
	return cmd
}

// apply overlays explicitly set flags on cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if f.outputDir != "" {
		cfg.Output.Dir = f.outputDir
	}
	if f.noScaffold {
		cfg.Output.Scaffold = false
	}
	if f.noTranscript {
		cfg.Output.Transcript = false
	}
	if f.metricsAddr != "" {
		cfg.Metrics.ListenAddr = f.metricsAddr
	}
	if f.maxIterations > 0 {
		cfg.Pipeline.MaxIterations = f.maxIterations
	}
	if cmd.Flags().Changed("search") {
		cfg.Search.Enabled = f.search
	}
}

// input resolves the run input from flags or interactive prompts.
func (f *runFlags) input(cmd *cobra.Command, cfg *config.Config) (pipeline.Input, error) {
	objective, files, useSearch := f.objective, f.files, cfg.Search.Enabled

	if objective == "" {
		if !isTerminal() {
			return pipeline.Input{}, errNoObjective
		}
		answers, err := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).collect(!cmd.Flags().Changed("search"))
		if err != nil {
			return pipeline.Input{}, err
		}
		objective = answers.Objective
		files = append(files, answers.Files...)
		if !cmd.Flags().Changed("search") {
			useSearch = answers.UseSearch
		}
	}

	content, cleaned, err := seedContent(objective, files)
	if err != nil {
		return pipeline.Input{}, err
	}
	return pipeline.Input{Objective: cleaned, FileContent: content, UseSearch: useSearch}, nil
}

// runDeps carries the collaborators of runObjective that tests replace.
type runDeps struct {
	out        io.Writer
	transports map[string]llm.LLMClient
	search     search.Provider
	sleep      utils.Sleeper
	metricsOut string

	serverStarted func(addr string) // called with the bound status server address
}

// runObjective wires the client, search, sinks and console and runs one
// objective to completion.
func runObjective(ctx context.Context, cfg *config.Config, in pipeline.Input, deps runDeps) (*pipeline.Result, error) {
	if deps.out == nil {
		deps.out = os.Stdout
	}
	con := console.New(deps.out)
	if width, ok := terminalWidth(deps.out); ok {
		con.SetWidth(width)
	}
	logger := logx.NewLogger("driver")

	reg := prometheus.NewRegistry()
	var recorder metrics.Recorder
	if cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder(reg, cfg.Metrics.Namespace)
	}

	client, err := agent.NewClient(cfg, agent.ClientOptions{
		Recorder:   recorder,
		Transports: deps.transports,
		Sleep:      deps.sleep,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	if cfg.Metrics.ListenAddr != "" {
		serverCtx, stopServer := context.WithCancel(ctx)
		defer stopServer()
		addr, err := monitor.NewServer(client, reg).Start(serverCtx, cfg.Metrics.ListenAddr)
		if err != nil {
			logger.Warn("Status server disabled: %v", err)
		} else if deps.serverStarted != nil {
			deps.serverStarted(addr)
		}
	}

	provider := deps.search
	if in.UseSearch && provider == nil {
		provider, err = tavilyProvider(cfg)
		if err != nil {
			con.Warning("Search disabled: %v", err)
			in.UseSearch = false
		}
	}

	sinks, closeSinks, err := buildSinks(cfg)
	if err != nil {
		return nil, err
	}
	defer closeSinks()

	driver := pipeline.NewDriver(cfg, client, pipeline.DriverOptions{
		Search:   provider,
		Reporter: con,
		Sinks:    sinks,
	})
	res, runErr := driver.Run(ctx, in)

	if deps.metricsOut != "" {
		if err := monitor.WriteMetricsFile(deps.metricsOut, reg); err != nil {
			logger.Warn("Failed to write metrics: %v", err)
		}
	}
	if runErr != nil {
		return res, logx.Errorf("run %s failed: %w", res.RunID, runErr)
	}
	con.Summary(res)
	return res, nil
}

func tavilyProvider(cfg *config.Config) (search.Provider, error) {
	key, err := config.GetAPIKey(config.ProviderTavily)
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	return search.NewTavily(search.TavilyOptions{
		APIKey:     key,
		BaseURL:    cfg.Search.BaseURL,
		Depth:      cfg.Search.Depth,
		MaxRetries: cfg.Search.MaxRetries,
	}), nil
}

// buildSinks returns the enabled artifact sinks and a func releasing them.
func buildSinks(cfg *config.Config) ([]pipeline.Sink, func(), error) {
	var sinks []pipeline.Sink
	closer := func() {}

	if cfg.Output.Scaffold {
		sinks = append(sinks, pipeline.ScaffoldSink{Builder: scaffold.NewBuilder(cfg.Output.Dir)})
	}
	if cfg.Output.Transcript {
		sinks = append(sinks, pipeline.TranscriptSink{Dir: cfg.Output.Dir})
	}
	if cfg.Output.ArchivePath != "" {
		store, err := persistence.Open(cfg.Output.ArchivePath)
		if err != nil {
			return nil, closer, fmt.Errorf("failed to open run archive: %w", err)
		}
		sinks = append(sinks, pipeline.ArchiveSink{Store: store})
		closer = func() {
			if err := store.Close(); err != nil {
				logx.Warnf("Failed to close run archive: %v", err)
			}
		}
	}
	return sinks, closer, nil
}
