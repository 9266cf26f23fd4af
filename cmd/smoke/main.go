package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/internal/smoke"
	"github.com/okian/civiclens/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	defaultCount        = 50
	defaultTimeout      = 10 * time.Second
	defaultPollInterval = 100 * time.Millisecond
	defaultDeadline     = 2 * time.Minute
	defaultFrames       = 5
)

var (
	baseURL   string
	timeout   time.Duration
	logFormat string
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "smoke",
		Short:         "Exercise a running CivicLens service end to end",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := logger.Init(logger.WithFormat(logFormat)); err != nil {
				return err
			}
			if verbose {
				return logger.SetLevelString("debug")
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:9080", "service base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "per request timeout")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "text or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(classifyCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Stderr.WriteString("smoke: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cfg := smoke.Config{}
	var mediaType string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit async analyses and verify each task lifecycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mt, err := model.ParseMediaType(mediaType)
			if err != nil {
				return err
			}
			if cfg.Count <= 0 || cfg.Workers <= 0 {
				return errors.New("count and workers must be positive")
			}
			cfg.MediaType = mt
			cfg.BaseURL = baseURL
			cfg.Timeout = timeout
			cfg.Verbose = verbose
			cfg.Logger = logger.Named("smoke")

			st, err := smoke.Run(cmd.Context(), &cfg, smoke.NewClient(baseURL, timeout))
			if err != nil {
				return err
			}
			fmt.Printf("submitted=%d rejected=%d completed=%d failed=%d stuck=%d violations=%d in %s\n",
				st.Submitted, st.Rejected, st.Completed, st.Failed, st.Stuck, len(st.Violations), st.Duration.Round(time.Millisecond))
			if !st.OK() {
				return errors.New("lifecycle verification failed")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&cfg.Count, "count", "n", defaultCount, "analyses to submit")
	cmd.Flags().IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU(), "concurrent clients")
	cmd.Flags().StringVar(&mediaType, "media-type", "image", "image or video")
	cmd.Flags().IntVar(&cfg.MaxFrames, "frames", defaultFrames, "frames per video")
	cmd.Flags().DurationVar(&cfg.PollInterval, "poll", defaultPollInterval, "status poll interval")
	cmd.Flags().DurationVar(&cfg.Deadline, "deadline", defaultDeadline, "per task deadline")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [task-id]",
		Short: "Print a task snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := smoke.NewClient(baseURL, timeout).Task(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(t)
		},
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [text]",
		Short: "Keyword-classify a complaint text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := smoke.NewClient(baseURL, timeout).Classify(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(out)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
