package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/balu-bunny/lambdaTest/shared/handler"
	"github.com/balu-bunny/lambdaTest/shared/handler/platforms"
	"github.com/balu-bunny/lambdaTest/shared/observability"
	"github.com/balu-bunny/lambdaTest/workers/backup/internal/worker"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "sfbackup",
		Short:         "Salesforce backup pipeline stages",
		Long:          "Runs the backup stages as a Lambda function, an HTTP server or a one-off invocation.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handler.DetectPlatform() == handler.PlatformLambda {
				return runLambda(cmd.Context())
			}
			return runServe(cmd.Context(), "")
		},
	}

	root.AddCommand(newLambdaCommand(), newServeCommand(), newInvokeCommand())
	return root
}

func newLambdaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve one stage on the AWS Lambda runtime",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLambda(cmd.Context())
		},
	}
}

func newServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve every stage over HTTP (POST /<stage>)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to HTTP_ADDR)")
	return cmd
}

func newInvokeCommand() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:       "invoke <stage>",
		Short:     "Run one stage with a JSON input and print its output",
		Args:      cobra.ExactArgs(1),
		ValidArgs: worker.Stages,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			return runInvoke(cmd.Context(), cmd.OutOrStdout(), args[0], payload)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "JSON input, a file path, or - for stdin")
	return cmd
}

func runLambda(ctx context.Context) error {
	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}

	stage := platforms.ResolveStage(app.config.Backup.Stage, "")
	app.logger.Info(context.Background(), "Starting Lambda handler", observability.Fields{"stage": stage})

	h := app.factory.CreateLambda()
	platforms.NewLambdaAdapter(h, &app.config.Lambda, worker.StageName(stage)).Start()
	return nil
}

func runServe(ctx context.Context, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = app.config.HTTP.Addr
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", platforms.NewHTTPAdapter(app.factory.CreateHTTP()))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	startTime := time.Now()
	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "HTTP server listening", observability.Fields{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			app.logger.Error(ctx, "HTTP server failed", err, nil)
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "Graceful shutdown failed", err, nil)
		return err
	}

	handler.LogShutdown(app.logger, app.metrics, startTime)
	return nil
}

func runInvoke(ctx context.Context, out io.Writer, stage string, payload []byte) error {
	app, err := bootstrap(ctx)
	if err != nil {
		return err
	}

	h := app.factory.CreateFor(handler.PlatformCLI)

	resp, err := h.Handle(ctx, handler.Request{
		ID:        uuid.NewString(),
		Source:    handler.PlatformCLI,
		Type:      worker.StageName(stage),
		Payload:   payload,
		Metadata:  map[string]string{},
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if !resp.Success {
		if err := enc.Encode(resp.Error.Body()); err != nil {
			return err
		}
		return fmt.Errorf("%s failed: %s", stage, resp.Error.Code)
	}
	return enc.Encode(json.RawMessage(resp.Data))
}

// readInput accepts inline JSON, a file path, or "-" for stdin.
func readInput(stdin io.Reader, input string) ([]byte, error) {
	switch {
	case input == "":
		return []byte("{}"), nil
	case input == "-":
		return io.ReadAll(stdin)
	case json.Valid([]byte(input)):
		return []byte(input), nil
	default:
		data, err := os.ReadFile(input)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		return data, nil
	}
}
