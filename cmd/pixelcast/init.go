package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pixelcast-dev/pixelcast/internal/config"
	"github.com/pixelcast-dev/pixelcast/internal/errors"
)

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter pixelcast.json",
		Long: `Create a pixelcast.json with one test-pattern pipeline as a
starting point.

Examples:
  pixelcast init
  pixelcast init /etc/pixelcast`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")
	return cmd
}

func runInit(dir string, force bool) error {
	path := filepath.Join(dir, config.ConfigFileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.Newf(errors.CategoryConfig, "%s already exists (use --force to overwrite)", path)
		}
	}

	starter := map[string]any{
		"metrics_address": ":9090",
		"log_level":       "info",
		"defaults": map[string]any{
			"width":  320,
			"height": 240,
			"dither": true,
		},
		"pipelines": []any{
			map[string]any{
				"name":    "demo",
				"address": ":9100",
				"source":  map[string]any{"kind": "pattern"},
			},
		},
	}
	data, err := json.MarshalIndent(starter, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return err
	}

	// Round-trip through the loader so a broken starter never ships.
	if _, err := config.LoadFile(path); err != nil {
		return err
	}

	printBanner()
	success("created %s", path)
	info("start streaming with: pixelcast serve")
	return nil
}
