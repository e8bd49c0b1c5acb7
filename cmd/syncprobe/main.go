package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/glimte/syncprobe"
	"github.com/glimte/syncprobe/config"
	"github.com/glimte/syncprobe/contracts"
	"github.com/glimte/syncprobe/correlation"
	"github.com/glimte/syncprobe/endpoint"
	"github.com/glimte/syncprobe/health"
	"github.com/glimte/syncprobe/testcontext"
	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var (
		configPath string
		rabbitURL  string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:   "syncprobe",
		Short: "Send test requests and wait for correlated replies",
		Long: `syncprobe sends a request message to a queue and blocks until the
correlated reply arrives or the timeout budget runs out.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildTime),
		SilenceUsage: true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&rabbitURL, "url", "u", "", "RabbitMQ connection URL (overrides the configuration)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	loadConfig := func() (*config.Config, error) {
		cfg := config.Default()
		if configPath != "" {
			var err error
			if cfg, err = config.Load(configPath); err != nil {
				return nil, err
			}
		}
		if rabbitURL != "" {
			cfg.AMQP.URL = rabbitURL
		}
		return cfg, nil
	}

	newLogger := func() *slog.Logger {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
	}

	rootCmd.AddCommand(
		newSendCmd(loadConfig, newLogger),
		newHealthCmd(loadConfig, newLogger),
		newBudgetCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newSendCmd(loadConfig func() (*config.Config, error), newLogger func() *slog.Logger) *cobra.Command {
	var (
		destination string
		replyTo     string
		timeout     time.Duration
		interval    time.Duration
		payloadFile string
		variables   map[string]string
		headers     map[string]string
	)

	cmd := &cobra.Command{
		Use:   "send [payload]",
		Short: "Send a request and print the correlated reply",
		Long: `Send a request to a queue and wait for the reply carrying the same
correlation id. Without a reply queue a temporary queue is created for the
exchange and deleted afterwards. ${name} placeholders in queue names are
replaced from --var.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(args, payloadFile, cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if destination != "" {
				cfg.Endpoint.Destination = destination
			}
			if replyTo != "" {
				cfg.Endpoint.ReplyDestination = replyTo
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Endpoint.Timeout = timeout
			}
			if cmd.Flags().Changed("interval") {
				cfg.Endpoint.PollingInterval = interval
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger := newLogger()
			client, err := syncprobe.NewClient(ctx, cfg, syncprobe.WithLogger(logger))
			if err != nil {
				return err
			}
			defer client.Close()

			ep, err := client.Endpoint()
			if err != nil {
				return err
			}

			tctx := testcontext.New()
			for name, value := range variables {
				tctx.SetVariable(name, value)
			}

			msg := contracts.NewMessageBytes(payload)
			for name, value := range headers {
				msg.SetHeader(name, value)
			}

			start := time.Now()
			if err := ep.Producer().Send(ctx, msg, tctx); err != nil {
				return fmt.Errorf("failed to send: %w", err)
			}
			reply, err := ep.Consumer().Receive(ctx, tctx)
			if err != nil {
				return fmt.Errorf("no reply: %w", err)
			}

			logger.Info("received reply",
				"correlationId", reply.GetCorrelationID(),
				"elapsed", time.Since(start))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), reply.GetPayload())
			return err
		},
	}

	cmd.Flags().StringVarP(&destination, "destination", "d", "", "Request queue name")
	cmd.Flags().StringVarP(&replyTo, "reply-to", "r", "", "Reply queue name (temporary queue when empty)")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", endpoint.DefaultTimeout, "How long to wait for the reply")
	cmd.Flags().DurationVarP(&interval, "interval", "i", correlation.DefaultPollingInterval, "Reply polling interval")
	cmd.Flags().StringVarP(&payloadFile, "file", "f", "", "Read the payload from a file, - for stdin")
	cmd.Flags().StringToStringVar(&variables, "var", nil, "Test variable used in ${name} placeholders (name=value)")
	cmd.Flags().StringToStringVarP(&headers, "header", "H", nil, "Message header (name=value)")
	return cmd
}

func readPayload(args []string, file string, stdin io.Reader) ([]byte, error) {
	switch {
	case len(args) == 1 && file != "":
		return nil, fmt.Errorf("%w: pass the payload as argument or with --file, not both", contracts.ErrInvalidInput)
	case len(args) == 1:
		return []byte(args[0]), nil
	case file == "-":
		return io.ReadAll(stdin)
	case file != "":
		return os.ReadFile(file)
	default:
		return nil, fmt.Errorf("%w: no payload given", contracts.ErrInvalidInput)
	}
}

func newHealthCmd(loadConfig func() (*config.Config, error), newLogger func() *slog.Logger) *cobra.Command {
	var (
		destination string
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the broker, the request queue and the reply store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if destination != "" {
				cfg.Endpoint.Destination = destination
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			client, err := syncprobe.NewClient(ctx, cfg, syncprobe.WithLogger(newLogger()))
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancelCheck := context.WithTimeout(ctx, timeout)
			defer cancelCheck()

			report := client.Health(ctx)
			printReport(cmd.OutOrStdout(), report)
			if report.Status == health.StatusUnhealthy {
				return fmt.Errorf("health check failed: %s", report.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&destination, "destination", "d", "", "Request queue to inspect")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Second, "Time allowed for all checks")
	return cmd
}

func printReport(out io.Writer, report health.Report) {
	for _, name := range report.Names() {
		check := report.Checks[name]
		fmt.Fprintf(out, "%-10s %-24s %s", check.Status, name, check.Message)
		if check.Error != "" {
			fmt.Fprintf(out, " (%s)", check.Error)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "overall: %s\n", report.Status)
}

func newBudgetCmd() *cobra.Command {
	var (
		timeout  time.Duration
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show the polling schedule for a timeout and interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			budget := correlation.NewRetryBudget(timeout, interval)
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "timeout:      %s\n", budget.Timeout)
			fmt.Fprintf(out, "interval:     %s\n", budget.PollInterval)
			fmt.Fprintf(out, "max attempts: %d\n", budget.MaxAttempts())

			poll := budget.Start()
			var (
				elapsed time.Duration
				waits   []string
			)
			for {
				poll.Attempt()
				wait, more := poll.Next()
				if !more {
					break
				}
				elapsed += wait
				waits = append(waits, wait.String())
			}
			fmt.Fprintf(out, "waits:        [%s]\n", strings.Join(waits, " "))
			fmt.Fprintf(out, "total wait:   %s\n", elapsed)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", endpoint.DefaultTimeout, "Total time budget")
	cmd.Flags().DurationVarP(&interval, "interval", "i", correlation.DefaultPollingInterval, "Polling interval")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "syncprobe %s\ncommit: %s\nbuilt: %s\n", version, gitCommit, buildTime)
		},
	}
}
