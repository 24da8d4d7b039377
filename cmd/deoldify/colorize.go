package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const colorSuffix = "-color"

// outputPath returns <dir>/<name>-color<ext> for in.
func outputPath(in, dir string) string {
	ext := filepath.Ext(in)
	name := strings.TrimSuffix(filepath.Base(in), ext) + colorSuffix + ext
	if dir == "" {
		dir = filepath.Dir(in)
	}
	return filepath.Join(dir, name)
}

func newColorizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "colorize IN [OUT]",
		Short: "Colorize one image",
		Long: `Colorize one image. OUT defaults to IN with "-color" added to its name.
The output format follows the OUT extension: .jpg/.jpeg, .png, .webp or BMP otherwise.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			out := outputPath(in, "")
			if len(args) == 2 {
				out = args[1]
			}

			engine, err := a.engine()
			if err != nil {
				return err
			}

			start := time.Now()
			progress, done := newProgress(cmd.ErrOrStderr(), filepath.Base(in))
			err = engine.ColorizeFile(in, out, progress)
			done()
			if err != nil {
				return err
			}

			a.log.Info("colorized", "input", in, "output", out, "duration", time.Since(start))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		pattern string
		outDir  string
		jobs    int
	)

	cmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Colorize every matching image in a directory",
		Long: `Colorize every image in DIR matching --pattern. Results are written next to
the inputs (or into --out) with "-color" added to their names; files that already
carry that suffix are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if jobs < 1 {
				return fmt.Errorf("--jobs must be at least 1, got %d", jobs)
			}
			matches, err := filepath.Glob(filepath.Join(args[0], pattern))
			if err != nil {
				return fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}

			var inputs []string
			for _, m := range matches {
				base := strings.TrimSuffix(filepath.Base(m), filepath.Ext(m))
				if info, err := os.Stat(m); err != nil || !info.Mode().IsRegular() || strings.HasSuffix(base, colorSuffix) {
					continue
				}
				inputs = append(inputs, m)
			}
			if len(inputs) == 0 {
				a.log.Info("nothing to do", "dir", args[0], "pattern", pattern)
				return nil
			}
			if outDir != "" {
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return err
				}
			}

			engine, err := a.engine()
			if err != nil {
				return err
			}

			var (
				mu     sync.Mutex
				failed []error
			)
			g := new(errgroup.Group)
			g.SetLimit(jobs)
			start := time.Now()
			for _, in := range inputs {
				g.Go(func() error {
					out := outputPath(in, outDir)
					t := time.Now()
					if err := engine.ColorizeFile(in, out, nil); err != nil {
						a.log.Error(err, "failed", "input", in)
						mu.Lock()
						failed = append(failed, err)
						mu.Unlock()
						return nil
					}
					a.log.Info("colorized", "input", in, "output", out, "duration", time.Since(t))
					mu.Lock()
					fmt.Fprintln(cmd.OutOrStdout(), out)
					mu.Unlock()
					return nil
				})
			}
			_ = g.Wait()

			a.log.Info("batch finished", "images", len(inputs), "failed", len(failed), "duration", time.Since(start))
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d images failed: %w", len(failed), len(inputs), errors.Join(failed...))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "*.jpg", "glob selecting the input files")
	cmd.Flags().StringVar(&outDir, "out", "", "directory for the results (default: next to the inputs)")
	cmd.Flags().IntVar(&jobs, "jobs", 1, "images colorized concurrently")
	return cmd
}
