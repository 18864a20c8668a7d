package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pixelcast-dev/pixelcast/internal/errors"
	"github.com/pixelcast-dev/pixelcast/pkg/client"
)

func clientCmd() *cobra.Command {
	var (
		buffer  int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "client <address>",
		Short: "Run a headless display client",
		Long: `Connect to a pipeline like a display would and consume its
stream, logging packet statistics instead of rendering. Useful for soak
testing a server without hardware attached.

Examples:
  pixelcast client 10.0.0.5:9100
  pixelcast client 10.0.0.5:9100 --buffer 4096`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(args[0], buffer, timeout)
		},
	}

	cmd.Flags().IntVarP(&buffer, "buffer", "b", 8192, "Receive buffer capacity in bytes")
	cmd.Flags().DurationVarP(&timeout, "read-timeout", "t", 30*time.Second, "Inactivity timeout")
	return cmd
}

func runClient(addr string, buffer int, timeout time.Duration) error {
	if buffer < 2 {
		return errors.New("E401").WithDetail("buffer must hold at least one pixel")
	}
	setupLogging("info")

	cfg := client.DefaultConfig()
	cfg.Addr = addr
	cfg.BufferCapacity = buffer
	cfg.ReadTimeout = timeout

	display := &statsDisplay{logger: slog.Default().With("component", "display")}
	c := client.New(cfg, display)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Periodic throughput report while the stream runs.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				display.report()
			case <-ctx.Done():
				return
			}
		}
	}()

	info("consuming %s (buffer %d bytes)", addr, buffer)
	err := c.Run(ctx)
	display.report()
	if err == context.Canceled {
		return nil
	}
	return err
}

// statsDisplay counts traffic instead of rendering it.
type statsDisplay struct {
	logger  *slog.Logger
	packets atomic.Int64
	bytes   atomic.Int64
}

func (d *statsDisplay) Blit(x, y, w, h int, pix []byte) {
	d.packets.Add(1)
	d.bytes.Add(int64(len(pix)))
}

func (d *statsDisplay) ShowStatus(msg string) {
	fmt.Fprintf(os.Stderr, "\n  [status] %s\n\n", msg)
}

func (d *statsDisplay) report() {
	d.logger.Info("stream stats",
		"packets", d.packets.Load(),
		"payload_bytes", d.bytes.Load())
}
