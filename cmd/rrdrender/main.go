// Command rrdrender is a batch renderer: it reads a config index, then
// renders every graph it describes into day/week/month/year PNGs read
// straight out of the on-disk round-robin archives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/kylerisse/rrdrender/pkg/config"
	"github.com/kylerisse/rrdrender/pkg/rrdrender"
	"github.com/kylerisse/rrdrender/pkg/scheduler"
)

const (
	version      = "1.0.0"
	defaultStats = "/var/lib/munin/munin-graph.stats"
)

// defaultStatsOverride lets tests redirect the stats file without
// touching the real munin runtime directories.
var defaultStatsOverride = defaultStats

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("rrdrender", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	dataFile := fs.String("data-file", "/var/lib/munin/datafile", "path to the config index")
	debug := fs.Bool("d", false, "enable debug logging")
	fs.BoolVar(debug, "debug", false, "enable debug logging")
	noLazy := fs.Bool("n", false, "force every graph to be redrawn, ignoring PNG mtimes")
	fs.BoolVar(noLazy, "no-lazy", false, "force every graph to be redrawn, ignoring PNG mtimes")
	showVersion := fs.Bool("version", false, "print the version and exit")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [--data-file=PATH] [-d|--debug] [-n|--no-lazy] [--help] [--version]\n", fs.Name())
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return 1
	}
	if *showVersion {
		fmt.Println(version)
		return 0
	}

	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)
	if *debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	f, err := os.Open(*dataFile)
	if err != nil {
		logger.Errorf("could not open config index %s: %v", *dataFile, err)
		return 1
	}
	idx, err := config.Parse(f, *dataFile)
	f.Close()
	if err != nil {
		logger.Errorf("%v", err)
		return 1
	}

	statsFile, err := os.OpenFile(defaultStatsOverride, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	var stats *scheduler.Stats
	if err != nil {
		logger.Warnf("could not open stats file, running without one: %v", err)
	} else {
		defer statsFile.Close()
		stats = scheduler.NewStats(statsFile)
	}

	renderer := rrdrender.New(idx, logger, *noLazy)

	jobs := make([]scheduler.GraphJob, len(idx.Graphs))
	for i, g := range idx.Graphs {
		g := g
		jobs[i] = scheduler.GraphJob{
			Domain: g.Domain,
			Host:   g.Host,
			Name:   g.Name,
			Render: func() error { return renderer.RenderGraph(g) },
		}
	}

	sched := scheduler.New(logger, stats)
	if err := sched.Run(context.Background(), jobs); err != nil {
		logger.Errorf("one or more graphs failed to render: %v", err)
		return 1
	}
	return 0
}
