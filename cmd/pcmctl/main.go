// Command pcmctl exercises the pcm core against the reference backends: it
// opens a pipeline described by a YAML descriptor, runs hw_params negotiation
// (software parameters stay at the defaults hw_params installs), writes a
// fixed number of periods of zero-filled frames (playback) or reads that many
// periods (capture), and dumps the resulting status before closing cleanly.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/doismellburning/pcmcore/pcm"
	_ "github.com/doismellburning/pcmcore/pcm/backend/filesink"
	_ "github.com/doismellburning/pcmcore/pcm/backend/hwdevice"
	_ "github.com/doismellburning/pcmcore/pcm/backend/nullsink"
	_ "github.com/doismellburning/pcmcore/pcm/backend/plug"
	"github.com/doismellburning/pcmcore/pipeline"
)

func main() {
	descPath := pflag.StringP("descriptor", "d", "", "Path to a pipeline descriptor YAML file.")
	periods := pflag.IntP("periods", "n", 4, "Number of periods to transfer before draining.")
	verbose := pflag.BoolP("verbose", "v", false, "Enable debug logging.")
	help := pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pcmctl -d pipeline.yaml [-n periods]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help || *descPath == "" {
		pflag.Usage()
		if *help {
			os.Exit(0)
		}
		os.Exit(2)
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if err := run(logger, *descPath, *periods); err != nil {
		logger.Error("pcmctl failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *log.Logger, descPath string, periods int) error {
	doc, err := pipeline.Load(descPath)
	if err != nil {
		return err
	}
	stream, err := doc.StreamDirection()
	if err != nil {
		return err
	}

	ep, err := pcm.Build(stream, doc.Descriptor())
	if err != nil {
		return fmt.Errorf("open pipeline %q: %w", doc.Name, err)
	}
	ctx := context.Background()
	defer func() {
		if cerr := ep.Close(ctx); cerr != nil {
			logger.Error("close failed", "err", cerr)
		}
	}()

	space, err := doc.HwConfigSpace()
	if err != nil {
		return err
	}
	cfg, err := ep.HwParams(space)
	if err != nil {
		return fmt.Errorf("hw_params: %w", err)
	}
	logger.Info("negotiated", "rate", cfg.Rate, "channels", cfg.Channels,
		"format", cfg.Format, "period_size", cfg.PeriodSize, "buffer_size", cfg.BufferSize)

	if err := pcm.DumpHwSetup(ep, os.Stdout); err != nil {
		return err
	}
	if err := pcm.DumpSwSetup(ep, os.Stdout); err != nil {
		return err
	}

	frameBytes := pcm.Width(cfg.Format) * cfg.Channels / 8
	buf := make([]byte, cfg.PeriodSize*frameBytes)

	if stream == pcm.StreamPlayback {
		if err := runPlayback(ctx, ep, buf, cfg, periods); err != nil {
			return err
		}
	} else {
		if err := runCapture(ctx, ep, buf, cfg, periods); err != nil {
			return err
		}
	}

	return pcm.StatusDump(ep, os.Stdout)
}

func runPlayback(ctx context.Context, ep *pcm.Endpoint, buf []byte, cfg pcm.Config, periods int) error {
	for i := 0; i < periods; i++ {
		n, err := pcm.WriteI(ctx, ep, buf, cfg.PeriodSize)
		if err != nil {
			return fmt.Errorf("writei (period %d): %w", i, err)
		}
		if n != cfg.PeriodSize {
			return fmt.Errorf("short write: %d of %d frames", n, cfg.PeriodSize)
		}
	}
	// The default start mode is explicit, so the written periods only begin
	// playing here; Drain requires a RUNNING stream.
	if ep.State() == pcm.StatePrepared {
		if err := ep.Start(); err != nil {
			return fmt.Errorf("start: %w", err)
		}
	}
	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ep.Drain(drainCtx)
}

func runCapture(ctx context.Context, ep *pcm.Endpoint, buf []byte, cfg pcm.Config, periods int) error {
	if err := ep.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	for i := 0; i < periods; i++ {
		n, err := pcm.ReadI(ctx, ep, buf, cfg.PeriodSize)
		if err != nil {
			return fmt.Errorf("readi (period %d): %w", i, err)
		}
		if n != cfg.PeriodSize {
			return fmt.Errorf("short read: %d of %d frames", n, cfg.PeriodSize)
		}
	}
	return ep.Drop()
}
