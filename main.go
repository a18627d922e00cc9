package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"fdbinspect/config"
	"fdbinspect/inspect"
	"fdbinspect/storage"
)

const (
	exitSuccess      = 0x00
	exitUnknownError = 0x01
	exitUnknownArg   = 0x02
	exitDevNotFound  = 0x04
	exitReadFailure  = 0x08
)

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

func usage(w io.Writer, name string) {
	fmt.Fprintf(w, "Usage: %s options\n", name)
	fmt.Fprintf(w, "-b blocksize: block size of target forestdb (default: %d)\n", config.DefaultBlockSize)
	fmt.Fprintf(w, "-m meta: 0 - use BLK_MARKER, 1 - use DOCBLK_META\n")
	fmt.Fprintf(w, "                (default: 0)\n")
	fmt.Fprintf(w, "-d devname: Device name which contains target forestdb\n")
	fmt.Fprintf(w, "            (/dev/sdxx must be used)\n")
	fmt.Fprintf(w, "-e emit: block - one line per block, event - one line per trace event\n")
	fmt.Fprintf(w, "                (default: block)\n")
	fmt.Fprintf(w, "-metrics.listen addr: serve prometheus metrics on addr during the run\n")
	fmt.Fprintf(w, "-v: debug logging\n")
}

func printConfig(w io.Writer, cfg config.Config) {
	banner := color.New(color.FgCyan, color.Bold)

	banner.Fprintln(w, "====== Configurations ======")
	fmt.Fprintf(w, "Blocksize: %d bytes\n", cfg.BlockSize)
	fmt.Fprintf(w, "Device name: %s\n", cfg.DevicePath)
	fmt.Fprintf(w, "Marker: %d (%s)\n", cfg.Marker, cfg.Marker)
	fmt.Fprintf(w, "Emit: %s\n", cfg.Emit)
	banner.Fprintln(w, "============================")
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	name := filepath.Base(args[0])
	cfg := config.Default()

	var (
		markerMode int
		emit       string
		verbose    bool
	)

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Int64Var(&cfg.BlockSize, "b", config.DefaultBlockSize, "")
	fs.IntVar(&markerMode, "m", int(config.MarkerByte), "")
	fs.StringVar(&cfg.DevicePath, "d", "", "")
	fs.StringVar(&emit, "e", string(config.EmitBlock), "")
	fs.StringVar(&cfg.MetricsListen, "metrics.listen", "", "")
	fs.BoolVar(&verbose, "v", false, "")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(stderr, err)
		usage(stderr, name)
		return exitUnknownArg
	}

	cfg.Marker = config.MarkerMode(markerMode)
	cfg.Emit = config.EmitMode(emit)

	logger := log.NewLogfmtLogger(log.NewSyncWriter(stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	if err := cfg.Verify(); err != nil {
		level.Error(logger).Log("msg", "invalid configuration", "err", err)
		usage(stderr, name)

		if errors.Is(err, config.ErrDeviceNotFound) {
			return exitDevNotFound
		}
		return exitUnknownArg
	}

	printConfig(stderr, cfg)

	dev, err := storage.OpenDevice(cfg.DevicePath)
	if err != nil {
		level.Error(logger).Log("msg", "cannot open device", "err", err)
		return exitDevNotFound
	}
	defer dev.Close()

	registry := prometheus.NewRegistry()
	ins := inspect.New(logger, prometheus.WrapRegistererWithPrefix("fdbinspect_", registry), cfg, dev, name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: cfg.MetricsListen, Handler: mux}

		g.Go(func() error {
			level.Info(logger).Log("msg", "serving metrics", "addr", cfg.MetricsListen)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "serve metrics")
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			if srv == nil {
				return
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				level.Error(logger).Log("msg", "shutdown metrics server", "err", err)
			}
		}()

		return ins.Run(gctx, stdin, stdout)
	})

	err = g.Wait()

	var readErr *storage.ReadError
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.As(err, &readErr):
		level.Error(logger).Log("msg", "inspection aborted", "offset", readErr.Offset, "size", readErr.Size, "err", readErr.Err)
		return exitReadFailure
	default:
		level.Error(logger).Log("msg", "inspection failed", "err", err)
		return exitUnknownError
	}

	if err := ins.Stats().Report(stdout); err != nil {
		level.Error(logger).Log("msg", "write statistics", "err", err)
		return exitUnknownError
	}

	return exitSuccess
}
