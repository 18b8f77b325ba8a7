// Command transcribe-cli submits an uploaded recording to the API and
// follows the job until it completes, fails or goes stale. With -usage it
// prints the caller's minutes for a billing period instead.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/transcribe-be/internal/api/auth"
	"github.com/cuongbtq/transcribe-be/internal/client"
	"github.com/cuongbtq/transcribe-be/internal/poller"
	"github.com/cuongbtq/transcribe-be/shared/logger"
	"github.com/joho/godotenv"
)

const (
	exitOK = iota
	exitFailed
	exitStale
	exitError
)

type options struct {
	api        string
	token      string
	signSecret string
	user       string
	filePath   string
	fileName   string
	id         string
	interval   time.Duration
	showResult bool
	usage      bool
	period     string
	verbose    bool
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.api, "api", envOr("TRANSCRIBE_API_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&opts.token, "token", os.Getenv("TRANSCRIBE_TOKEN"), "Bearer token")
	flag.StringVar(&opts.signSecret, "sign-secret", "", "Mint a short-lived token with this HS256 secret (development)")
	flag.StringVar(&opts.user, "user", "", "Owner id for -sign-secret")
	flag.StringVar(&opts.filePath, "file-path", "", "Storage path of the uploaded audio")
	flag.StringVar(&opts.fileName, "file-name", "", "Display name of the recording")
	flag.StringVar(&opts.id, "id", "", "Follow an existing transcription instead of submitting")
	flag.DurationVar(&opts.interval, "interval", poller.DefaultInterval, "Polling interval")
	flag.BoolVar(&opts.showResult, "result", false, "Print the transcript and summary on completion")
	flag.BoolVar(&opts.usage, "usage", false, "Print minutes used and exit")
	flag.StringVar(&opts.period, "period", "", "Billing period YYYY-MM for -usage (default current month)")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	flag.Parse()

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	appLogger, err := logger.New(&logger.Config{Level: level, Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, opts, os.Stdout, appLogger.Logger)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, opts options, out io.Writer, log *slog.Logger) int {
	token, err := resolveToken(opts)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return exitError
	}

	c := client.New(client.Config{BaseURL: opts.api, Token: token})

	if opts.usage {
		return printUsage(ctx, c, opts.period, out)
	}

	id := opts.id
	if id == "" {
		if opts.filePath == "" || opts.fileName == "" {
			fmt.Fprintln(out, "error: -file-path and -file-name are required unless -id is set")
			return exitError
		}
		res, err := c.Submit(ctx, opts.fileName, opts.filePath)
		if err != nil {
			fmt.Fprintln(out, "submit failed:", err)
			return exitError
		}
		id = res.ID
		fmt.Fprintf(out, "submitted %s (%s)\n", id, res.Status)
	}

	p := poller.New(c, poller.Config{
		Interval:    opts.interval,
		IsPermanent: client.IsPermanent,
		Logger:      log,
		OnProgress: func(s poller.Snapshot) {
			fmt.Fprintf(out, "%s  %s\n", time.Now().Format(time.TimeOnly), s.Status)
		},
	})
	outcome := p.Wait(ctx, id)

	switch {
	case outcome.Succeeded():
		if d := outcome.Snapshot.DurationSeconds; d != nil {
			fmt.Fprintf(out, "complete (%ds of audio)\n", *d)
		} else {
			fmt.Fprintln(out, "complete")
		}
		if opts.showResult {
			return printResult(ctx, c, id, out)
		}
		return exitOK
	case outcome.Kind == poller.KindFailed:
		fmt.Fprintln(out, "failed:", outcome.Message)
		return exitFailed
	case outcome.Stale():
		fmt.Fprintf(out, "stale: %s (server status %s)\n", outcome.Message, outcome.Snapshot.Status)
		return exitStale
	case outcome.Kind == poller.KindCanceled:
		fmt.Fprintln(out, "canceled")
		return exitError
	default:
		fmt.Fprintln(out, "error:", outcome.Message)
		return exitError
	}
}

func resolveToken(opts options) (string, error) {
	if opts.signSecret == "" {
		return opts.token, nil
	}
	if opts.user == "" {
		return "", errors.New("-user is required with -sign-secret")
	}
	return auth.Sign(auth.Config{Secret: opts.signSecret}, opts.user, time.Hour)
}

func printResult(ctx context.Context, c *client.Client, id string, out io.Writer) int {
	res, err := c.Result(ctx, id)
	if err != nil {
		fmt.Fprintln(out, "failed to read result:", err)
		return exitError
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintln(out, "failed to print result:", err)
		return exitError
	}
	return exitOK
}

func printUsage(ctx context.Context, c *client.Client, period string, out io.Writer) int {
	u, err := c.Usage(ctx, period)
	if err != nil {
		fmt.Fprintln(out, "usage failed:", err)
		return exitError
	}
	fmt.Fprintf(out, "%s: %.1f minutes\n", u.Period, u.MinutesUsed)
	return exitOK
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
