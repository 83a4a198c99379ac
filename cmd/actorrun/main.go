// Command actorrun hosts a root actor cell tree as a standalone process: it
// builds a root cell, spawns one of a small registry of demo bodies under
// it, and runs until SIGINT/SIGTERM. It is process-level hosting for the
// runtime in internal/actor, not part of the runtime itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/loomwire/actorcore/internal/actor"
)

var (
	demoName    string
	hwm         int
	stopTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "actorrun",
	Short: "Host an actor cell tree until interrupted",
	Long: `actorrun builds a root cell, spawns a demo actor under it from a
small built-in registry, and keeps the process alive until it receives
SIGINT or SIGTERM. It exists to give the actor runtime a runnable entry
point; the runtime itself has no process-hosting concerns.`,
	RunE: runActorrun,
}

func init() {
	rootCmd.Flags().StringVar(
		&demoName, "demo", "echo",
		fmt.Sprintf("Demo body to run under root (one of: %s)", demoNames()),
	)
	rootCmd.Flags().IntVar(
		&hwm, "hwm", 0,
		"Mailbox high-water-mark threshold for the demo cell (0 uses the package default)",
	)
	rootCmd.Flags().DurationVar(
		&stopTimeout, "stop-timeout", 5*time.Second,
		"How long to wait for the demo cell to stop cleanly on shutdown",
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runActorrun(cmd *cobra.Command, args []string) error {
	build, ok := demoRegistry[demoName]
	if !ok {
		return fmt.Errorf("actorrun: unknown demo %q (available: %s)", demoName, demoNames())
	}

	logger := btclogv2.NewSLogger(btclogv2.NewDefaultHandler(os.Stdout))
	logger.SetLevel(btclog.LevelInfo)
	actor.UseLogger(logger)

	root := actor.NewRoot(actor.WithID("root"))

	opts := build()
	opts = append(opts, actor.WithID("demo-"+demoName), actor.WithStopTimeout(stopTimeout))
	if hwm > 0 {
		opts = append(opts, actor.WithHWM(hwm))
	}
	demo := root.Spawn(opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return watchSignals(gctx)
	})
	g.Go(func() error {
		defer cancel()
		_, err := demo.Done().Await(gctx).Unpack()
		return err
	})

	err := g.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = root.Stop()
	_, _ = root.Done().Await(shutdownCtx).Unpack()

	if err != nil && err != context.Canceled {
		return err
	}

	return nil
}

// watchSignals blocks until ctx is done or a termination signal arrives. A
// second SIGINT/SIGTERM while shutdown is already underway forces an
// immediate exit rather than waiting on in-flight cleanup.
func watchSignals(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		fmt.Printf("actorrun: received %v, shutting down (send again to force exit)\n", sig)
	case <-ctx.Done():
		signal.Stop(sigCh)
		return ctx.Err()
	}

	go func() {
		sig := <-sigCh
		fmt.Printf("actorrun: received %v again, forcing immediate exit\n", sig)
		os.Exit(1)
	}()

	return nil
}
