package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/epub-counter/api/internal/client"
	"github.com/epub-counter/api/internal/config"
	"github.com/epub-counter/api/internal/discovery"
	"github.com/epub-counter/api/internal/model"
	"github.com/epub-counter/api/internal/parallel"
	"github.com/epub-counter/api/internal/pipeline"
	"github.com/epub-counter/api/internal/report"
	"github.com/epub-counter/api/internal/tokenizer"
)

const defaultInput = "./epubs/"

var errMaxMB = errors.New("--max-mb must be a positive number")

var newTokenizerFactory = func(cfg *config.Config) parallel.TokenizerFactory {
	return tokenizer.NewFactory(client.NewAnthropicClient(&cfg.Anthropic), client.NewHubClient(&cfg.HuggingFace))
}

type options struct {
	input      string
	output     string
	tokenizers string
	maxMB      int
	recursive  bool
	verbose    bool
	jobs       string
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "epub-counter [paths...]",
		Short:         "Count words in EPUB files",
		Version:       "1.0.0",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "Input folder or file path")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")
	f.BoolVarP(&opts.recursive, "recursive", "r", false, "Scan subdirectories recursively")
	f.StringVarP(&opts.output, "output", "o", "./results", "Output folder path")
	f.StringVarP(&opts.tokenizers, "tokenizers", "t", "gpt4", "Comma-separated list of tokenizers (e.g., gpt4,claude,hf:bert-base-uncased)")
	f.IntVar(&opts.maxMB, "max-mb", 500, "Maximum EPUB text size in MB")
	f.StringVar(&opts.jobs, "jobs", "", `Number of files processed in parallel (default CPU-1, or "all")`)
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file (default ./config.yaml)")

	cmd.AddCommand(newListModelsCmd())
	return cmd
}

// inputPaths applies the precedence --input, then positional paths, then ./epubs/.
func inputPaths(input string, args []string) []string {
	if input != "" {
		return []string{input}
	}
	if len(args) > 0 {
		return args
	}
	return []string{defaultInput}
}

// applyConfig fills every flag the user did not set from the loaded config.
func applyConfig(cmd *cobra.Command, opts *options, cfg *config.Config) {
	f := cmd.Flags()
	if !f.Changed("output") && cfg.Processing.OutputDir != "" {
		opts.output = cfg.Processing.OutputDir
	}
	if !f.Changed("tokenizers") && len(cfg.Processing.Tokenizers) > 0 {
		opts.tokenizers = strings.Join(cfg.Processing.Tokenizers, ",")
	}
	if !f.Changed("max-mb") && cfg.Processing.MaxMB > 0 {
		opts.maxMB = cfg.Processing.MaxMB
	}
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyConfig(cmd, opts, cfg)

	level := cfg.Server.LogLevel
	if opts.verbose {
		level = "debug"
	}
	logger, err := config.NewLogger(level, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Tiktoken.CacheDir != "" {
		os.Setenv("TIKTOKEN_CACHE_DIR", cfg.Tiktoken.CacheDir)
	}

	if opts.maxMB <= 0 {
		return errMaxMB
	}
	names := tokenizer.ParseList(opts.tokenizers)
	if err := tokenizer.Validate(names); err != nil {
		return err
	}
	jobs, err := parallel.ParseJobs(opts.jobs, runtime.NumCPU(), logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	paths := inputPaths(opts.input, args)
	if opts.verbose {
		fmt.Fprintln(out, "Input paths:", paths)
		fmt.Fprintln(out, "Output directory:", opts.output)
		fmt.Fprintln(out, "Tokenizers:", names)
		fmt.Fprintln(out, "Max MB:", opts.maxMB)
		fmt.Fprintln(out, "Jobs:", jobs)
	}

	scanner := discovery.NewScanner(logger)
	var files []string
	for _, p := range paths {
		found, err := scanner.Discover(p, discovery.Options{Recursive: opts.recursive})
		if err != nil {
			return err
		}
		files = append(files, found...)
	}
	if len(files) == 0 {
		fmt.Fprintln(out, "No EPUB files found.")
		return nil
	}

	processor := pipeline.NewProcessor(
		tokenizer.NewOrchestrator(logger),
		pipeline.NewErrorLog(opts.output),
		cfg.Processing.ErrorPause,
		logger,
	)
	runner := parallel.New(processor, newTokenizerFactory(cfg), logger)

	popts := parallel.Options{
		Jobs:       jobs,
		Tokenizers: names,
		MaxMB:      opts.maxMB,
	}
	if opts.verbose {
		popts.OnFile = func(filePath string, o pipeline.Outcome) {
			if o.Result != nil {
				fmt.Fprintf(out, "  ✓ %s: %d words\n", o.Result.Record.Filename, o.Result.Record.WordCount)
			}
		}
	}

	started := time.Now()
	result, err := runner.Process(cmd.Context(), files, popts)
	if err != nil {
		return err
	}
	elapsed := time.Since(started)

	report.WriteResults(out, result.Successful)

	mdPath, jsonPath, err := writeReports(opts.output, result, time.Now())
	if err != nil {
		return err
	}
	logger.Debug("Reports written", zap.String("markdown", mdPath), zap.String("json", jsonPath))

	printSummary(out, result, mdPath, jsonPath, opts.verbose)
	report.WriteSummary(out, report.Summarize(result, elapsed))
	return nil
}

func writeReports(dir string, result *model.ProcessingResult, now time.Time) (string, string, error) {
	mdPath, err := report.Save(dir, report.MarkdownFile, []byte(report.Markdown(result, now)))
	if err != nil {
		return "", "", fmt.Errorf("write %s: %w", report.MarkdownFile, err)
	}
	data, err := report.EncodeJSON(result, now)
	if err != nil {
		return "", "", err
	}
	jsonPath, err := report.Save(dir, report.JSONFile, data)
	if err != nil {
		return "", "", fmt.Errorf("write %s: %w", report.JSONFile, err)
	}
	return mdPath, jsonPath, nil
}

func printSummary(w io.Writer, result *model.ProcessingResult, mdPath, jsonPath string, verbose bool) {
	fmt.Fprintln(w, "\nResults saved to:")
	fmt.Fprintf(w, "- %s\n", mdPath)
	fmt.Fprintf(w, "- %s\n", jsonPath)

	fmt.Fprintln(w, "\nSummary:")
	fmt.Fprintf(w, "- Total EPUBs: %d\n", result.Total)
	fmt.Fprintf(w, "- Successful: %d\n", len(result.Successful))
	fmt.Fprintf(w, "- Failed: %d\n", len(result.Failed))

	if verbose && len(result.Failed) > 0 {
		fmt.Fprintln(w, "\nFailed files:")
		for _, f := range result.Failed {
			fmt.Fprintf(w, "  - %s: %s\n", f.File, f.Error)
		}
	}
}
