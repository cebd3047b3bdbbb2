// Package cli implements the organize command, which runs the playlist
// organizer over a CSV file without contacting Spotify.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"Camelot-Organizer-Go/pkg/analysis"
	"Camelot-Organizer-Go/pkg/camelot"
	"Camelot-Organizer-Go/pkg/csvio"
	"Camelot-Organizer-Go/pkg/logging"
	"Camelot-Organizer-Go/pkg/organizer"
)

// Run is the entry point for the CLI application.
func Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("organize", flag.ContinueOnError)
	fs.SetOutput(stderr)

	inputPath := fs.String("input", "", "Path to the input CSV file (id,uri,name,artist,tempo,key,mode)")
	outputPath := fs.String("output", "", "Optional path to write the organized CSV in mixing order")
	format := fs.String("format", "text", "Output format for stdout: text or json")
	simulate := fs.Bool("simulate", false, "Fill in missing tempo, key and mode with simulated values")
	timeout := fs.Duration("timeout", 0, "Optional timeout for processing (e.g. 30s)")
	logLevel := fs.String("log-level", "warn", "Log level")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [options]\n\n", fs.Name())
		fmt.Fprintln(fs.Output(), "Options:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inputPath == "" {
		fs.Usage()
		return errors.New("input path is required")
	}
	if *format != "text" && *format != "json" {
		return fmt.Errorf("unknown format %q", *format)
	}
	if err := logging.Setup(stderr, *logLevel, "text"); err != nil {
		return err
	}

	ctx, cancel := maybeWithTimeout(ctx, *timeout)
	if cancel != nil {
		defer cancel()
	}

	tracks, err := csvio.Load(ctx, *inputPath)
	if err != nil {
		return err
	}
	if *simulate {
		if tracks, err = (analysis.Simulated{}).Analyze(ctx, tracks); err != nil {
			return err
		}
	}

	groups := organizer.Organize(tracks)
	summary := organizer.Summarize(tracks, groups)
	log.WithFields(log.Fields{
		"input":    *inputPath,
		"tracks":   summary.Total,
		"excluded": summary.Excluded,
		"groups":   summary.Groups,
	}).Info("organized")

	switch *format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Groups  []organizer.Group `json:"groups"`
			Summary organizer.Summary `json:"summary"`
		}{groups, summary}); err != nil {
			return err
		}
	default:
		printGroups(stdout, groups, summary)
	}

	if *outputPath != "" {
		if err := csvio.Save(ctx, *outputPath, groups); err != nil {
			return err
		}
		fmt.Fprintf(stderr, "Wrote %d tracks to %s\n", summary.Valid, filepath.Clean(*outputPath))
	}
	return nil
}

func printGroups(w io.Writer, groups []organizer.Group, s organizer.Summary) {
	for _, g := range groups {
		compat := make([]string, 0, 4)
		for _, c := range g.Camelot.Compatible() {
			compat = append(compat, string(c))
		}
		fmt.Fprintf(w, "%s  %s  (mixes with %s)\n", g.Label(), g.Camelot, strings.Join(compat, ", "))
		for _, t := range g.Tracks {
			name, _ := camelot.KeyName(*t.Key, *t.Mode)
			fmt.Fprintf(w, "  %3d  %-4s %s - %s\n", camelot.RoundBPM(*t.Tempo), name, t.ArtistNames(), t.Name)
		}
	}
	fmt.Fprintf(w, "%d tracks, %d organized into %d groups, %d excluded\n", s.Total, s.Valid, s.Groups, s.Excluded)
}

func maybeWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}
