package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chariot-build/chariot/internal/configparser"
	"github.com/chariot-build/chariot/internal/engine"
	"github.com/chariot-build/chariot/internal/log"
	"github.com/chariot-build/chariot/internal/progress"
	"github.com/chariot-build/chariot/internal/recipe"
	"github.com/chariot-build/chariot/internal/rootfs"
)

var (
	configPath string
	dryRun     bool
)

var buildCmd = &cobra.Command{
	Use:   "build [namespace/name ...]",
	Short: "Process the given recipe selectors",
	Long: `build loads the configuration file, resolves the recipe graph, marks
every matched "<namespace>/<name>" selector as invalidated, and then
processes the resulting force-list in order.

An unrecognised selector prints a warning and is skipped. An empty
force-list builds nothing and exits successfully.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringVar(&configPath, "config", "./config.chariot", "configuration file path")
	buildCmd.Flags().BoolVar(&dryRun, "dry-run", false, "walk the graph and print what would build without materialising anything")
}

func runBuild(cmd *cobra.Command, args []string) error {
	logger := log.Default()

	c, cfg, err := newCache()
	if err != nil {
		return err
	}

	if !dirExists(c.RootfsDir()) {
		logger.Info("base rootfs not found, installing", "dir", c.RootfsDir())
		if err := rootfs.Install(globalCtx, rootfs.Options{
			BootstrapURL: cfg.RootfsBootstrapURL,
			Dest:         c.RootfsDir(),
			Logger:       logger,
		}); err != nil {
			return err
		}
	}

	g, err := configparser.ParseFile(configPath)
	if err != nil {
		return err
	}

	forceList := recipe.NewList()
	for _, sel := range args {
		ns, name, ok := parseSelector(sel)
		if !ok {
			fmt.Fprintf(os.Stderr, "chariot: ignoring malformed selector %q\n", sel)
			continue
		}
		ref := recipe.RecipeRef{Namespace: recipe.Namespace(ns), Name: name}
		r, found := g.Lookup(ref)
		if !found {
			fmt.Fprintf(os.Stderr, "chariot: ignoring unknown selector %q\n", sel)
			continue
		}
		r.Status.Invalidated = true
		forceList.Add(ref)
	}

	e := engine.New(c, logger, progress.NewLineReporter(os.Stdout), cfg.ThreadCount)
	e.DryRun = dryRun
	e.ContainerTimeout = cfg.ContainerTimeout

	for _, ref := range forceList.Refs() {
		r, _ := g.Lookup(ref)
		if err := e.ProcessRecipe(globalCtx, r, verboseFlag); err != nil {
			return err
		}
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
