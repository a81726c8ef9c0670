// Command flagrelayd runs the flag-relay pipeline: an HTTP ingestion
// endpoint feeding a bounded queue, drained by submission workers that relay
// each flag to the scoring service over the resilient TCP client.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"pkt.systems/pslog"

	"github.com/ctfpipe/flagrelay"
	"github.com/ctfpipe/flagrelay/ingest"
	"github.com/ctfpipe/flagrelay/queue"
	"github.com/ctfpipe/flagrelay/worker"
)

func main() {
	logger := pslog.NewStructured(os.Stderr).With("app", "flagrelayd")
	if err := newRootCommand(logger).Execute(); err != nil {
		logger.Error("flagrelayd.fatal", "error", err)
		os.Exit(1)
	}
}

type options struct {
	listen            string
	servers           []string
	selector          string
	workers           int
	queueSize         int
	dedup             bool
	requeue           bool
	bannerLines       int
	flagFormat        string
	connectTimeout    time.Duration
	readTimeout       time.Duration
	reconnectInterval time.Duration
	logLevel          string
}

func addFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVar(&o.listen, "listen", ":8080", "address for the flag ingestion endpoint")
	fs.StringSliceVar(&o.servers, "server", nil, "scoring service host:port (repeatable)")
	fs.StringVar(&o.selector, "selector", "ordered", "candidate selection: ordered or random")
	fs.IntVar(&o.workers, "workers", 2, "number of submission workers")
	fs.IntVar(&o.queueSize, "queue-size", 4096, "maximum queued flags")
	fs.BoolVar(&o.dedup, "dedup", true, "drop flags already seen by the queue")
	fs.BoolVar(&o.requeue, "requeue", true, "requeue flags whose submission failed")
	fs.IntVar(&o.bannerLines, "banner-lines", 0, "greeting lines the scoring service emits after connect")
	fs.StringVar(&o.flagFormat, "flag-format", "", "regular expression a flag must match, empty accepts all")
	fs.DurationVar(&o.connectTimeout, "connect-timeout", flagrelay.DefaultConnectTimeout, "TCP connect timeout")
	fs.DurationVar(&o.readTimeout, "read-timeout", flagrelay.DefaultReadTimeout, "verdict read timeout")
	fs.DurationVar(&o.reconnectInterval, "reconnect-interval", time.Second, "minimum spacing between reconnect attempts")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
}

func newRootCommand(logger pslog.Logger) *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:           "flagrelayd",
		Short:         "relay captured flags to a scoring service over resilient TCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), logger, o)
		},
	}
	addFlags(cmd.Flags(), o)
	return cmd
}

func run(ctx context.Context, logger pslog.Logger, o *options) error {
	if len(o.servers) == 0 {
		return errors.New("at least one --server is required")
	}
	if level, ok := pslog.ParseLevel(o.logLevel); ok {
		logger = logger.LogLevel(level)
	}

	var selector flagrelay.Selector
	switch o.selector {
	case "ordered":
		selector = flagrelay.Ordered()
	case "random":
		selector = flagrelay.Random()
	default:
		return fmt.Errorf("unknown selector %q", o.selector)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	q := queue.NewMemory(o.queueSize, o.dedup)

	handler, err := ingest.NewHandler(q, o.flagFormat, logger.With("sys", "ingest"))
	if err != nil {
		return err
	}

	w, err := worker.New(worker.Config{
		Client: flagrelay.Config{
			Servers:        o.servers,
			Selector:       selector,
			ConnectTimeout: o.connectTimeout,
			ReadTimeout:    o.readTimeout,
			CloseOnError:   true,
			CloseOnEOF:     true,
			KeepAlive:      true,
		},
		PoolSize:          int32(o.workers),
		BannerLines:       o.bannerLines,
		ReconnectInterval: o.reconnectInterval,
		RequeueFailed:     o.requeue,
		Logger:            logger.With("sys", "worker"),
	}, q)
	if err != nil {
		return err
	}
	defer w.Close()

	mux := http.NewServeMux()
	mux.Handle("/flags", handler)
	srv := &http.Server{Addr: o.listen, Handler: mux}

	var wg sync.WaitGroup
	for i := 0; i < o.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				logger.Error("worker.stopped", "error", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("ingest.listening", "addr", o.listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		stop()
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	logger.Info("flagrelayd.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	q.Close()
	wg.Wait()
	return nil
}
