// Command mdshovel generates a sustained synthetic metadata-creation load
// against a hierarchical metadata store.
//
// Usage:
//
//	mdshovel [-dry-run] CONFIG_FILE
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/joyent/manta-mdshovel/internal/config"
	"github.com/joyent/manta-mdshovel/internal/metrics"
	"github.com/joyent/manta-mdshovel/internal/pathgen"
	"github.com/joyent/manta-mdshovel/internal/shovel"
	"github.com/joyent/manta-mdshovel/internal/store/metad"
)

func main() {
	os.Exit(run())
}

func run() int {
	dryRun := flag.Bool("dry-run", false, "skip store writes, substitute a fixed artificial delay")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-dry-run] CONFIG_FILE\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}

	cfg, err := config.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdshovel: %v\n", err)
		return 1
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdshovel: failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder, err := metrics.NewRecorder(logger)
	if err != nil {
		logger.Error("failed to create metrics recorder", zap.Error(err))
		return 1
	}
	if err := recorder.Start(ctx, cfg.MetricsPort); err != nil {
		logger.Error("failed to start metrics server", zap.Error(err))
		return 1
	}
	defer func() { _ = recorder.Stop(context.Background()) }()

	gen := pathgen.New(cfg.ShardPrefix(), cfg.LargeDirectory, cfg.SmallDirRoot)

	var (
		writer *shovel.Writer
		ready  <-chan struct{}
		fatal  <-chan error
	)
	if *dryRun {
		logger.Info("dry-run mode, store writes disabled")
		writer = shovel.NewDryRunWriter(recorder, logger)
		r := make(chan struct{})
		close(r)
		ready = r
	} else {
		client := metad.New(cfg.MetadataService, logger)
		client.Connect(ctx)
		defer func() { _ = client.Close() }()
		writer = shovel.NewWriter(client, recorder, logger)
		ready = client.Ready()
		fatal = client.Fatal()
	}

	governor := shovel.NewGovernor(cfg.Concurrency, gen, shovel.NewPipeline(writer), recorder, logger)

	done := make(chan struct{})
	go func() {
		governor.Run(ctx, ready)
		close(done)
	}()

	select {
	case err := <-fatal:
		logger.Error("fatal store client error", zap.Error(err))
		cancel()
		<-done
		return 1
	case <-done:
		return 0
	}
}
