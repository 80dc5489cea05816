package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	mcpserver "github.com/c1advanced/c1prep/internal/mcp"
	"github.com/c1advanced/c1prep/internal/media"
	"github.com/c1advanced/c1prep/internal/queue"
)

// cmdPDF fetches an exercise and saves its printable version.
func cmdPDF(args []string, opts globalOptions) error {
	if len(args) < 1 {
		return fmt.Errorf("exercise type required")
	}
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	ex, _, err := a.fetcher.Fetch(ctx, a.userID(), args[0])
	if err != nil {
		return err
	}
	path, err := media.ExportPDF(ctx, a.client, ex, filepath.Join(a.dir, "exports"))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Saved %s\n", path)
	return nil
}

// cmdEvents follows the result queue and prints every attempt.
func cmdEvents(args []string, opts globalOptions) error {
	args, mine := hasFlag(args, "--mine")
	if len(args) < 1 || args[0] != "tail" {
		return fmt.Errorf("usage: c1prep events tail [--mine]")
	}
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	if a.broker == nil {
		return errors.New("result events are not configured (set events.amqp_url)")
	}
	ctx, cancel := signalContext()
	defer cancel()

	cfg := queue.DefaultConsumerConfig()
	if mine {
		uid, err := a.requireUser()
		if err != nil {
			return err
		}
		cfg.UserID = uid
	}
	consumer := queue.NewConsumer(a.broker, func(ctx context.Context, ev *queue.ResultEvent) error {
		fmt.Fprintf(stdout, "%s  %-35s %3d/%-3d %3d%%  %s\n",
			ev.CompletedAt.Local().Format("2006-01-02 15:04:05"),
			ev.ExerciseType, ev.Score, ev.Total, ev.Percent, ev.UserID)
		return nil
	}, cfg, a.logger)
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	defer consumer.Stop()

	fmt.Fprintf(stdout, "Following %s (Ctrl+C to stop)\n", queue.ResultQueueName)
	<-ctx.Done()
	return nil
}

// cmdMCP serves one practice session over MCP.
func cmdMCP(args []string, opts globalOptions) error {
	addr, _ := flagValue(args, "--http")

	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := signalContext()
	defer cancel()

	ctrl := a.newSession("")
	defer ctrl.Wait()
	srv := mcpserver.NewServer(mcpserver.Config{
		Session:  ctrl,
		Fetcher:  a.fetcher,
		Identity: a.identity,
		Version:  Version,
		Logger:   a.logger,
	})

	if addr != "" {
		a.logger.Info("serving MCP over HTTP", "addr", addr)
		return srv.ServeHTTP(ctx, addr)
	}
	a.logger.Info("serving MCP on stdio")
	return srv.ServeStdio(ctx)
}
