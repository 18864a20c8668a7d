package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pixelcast-dev/pixelcast/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┬─┐ ┬┌─┐┬  ┌─┐┌─┐┌─┐┌┬┐
  ├─┘│┌┴┬┘├┤ │  │  ├─┤└─┐ │
  ┴  ┴┴ └─└─┘┴─┘└─┘┴ ┴└─┘ ┴
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "pixelcast",
		Short: "Differential frame streaming for small displays",
		Long: `Pixelcast streams rendered frames to embedded TCP displays.

Each configured pipeline renders a frame source, diffs consecutive
frames, and sends only the changed rectangles as RGB565 packets sized
for the display's receive buffer. An adaptive threshold keeps every
pipeline near its target frame rate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		clientCmd(),
		initCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		var cerr *errors.CastError
		if stderrors.As(err, &cerr) {
			fmt.Fprint(os.Stderr, cerr.Format())
		} else {
			fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		}
		os.Exit(1)
	}
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
