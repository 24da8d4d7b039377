package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/deoldify/colorize"
	"github.com/born-ml/deoldify/internal/fetch"
	"github.com/born-ml/deoldify/internal/model"
	"github.com/born-ml/deoldify/internal/weights"
)

var variants = []colorize.Variant{colorize.Stable, colorize.Artistic}

func (a *app) arch(v colorize.Variant) model.Arch {
	arch := model.Stable
	if v == colorize.Artistic {
		arch = model.Artistic
	}
	if a.scale > 1 {
		arch = arch.Scaled(a.scale)
	}
	return arch
}

func newCheckCmd(a *app) *cobra.Command {
	var withSum bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report which weight files are present",
		Long: `Report which weight files are present and which precision their size matches.
Fails when the file of the selected variant is missing or does not have the size
of the selected precision.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			header := []string{"FILE", "VARIANT", "BYTES", "STATUS"}
			if withSum {
				header = append(header, "SHA256")
			}
			table.SetHeader(header)
			table.SetBorder(false)
			table.SetAutoFormatHeaders(false)
			table.SetHeaderLine(false)
			table.SetAutoWrapText(false)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)

			var selected string
			for _, v := range variants {
				file := colorize.ModelFile(v)
				path := filepath.Join(a.modelsDir, file)
				size, status, digest := "-", "missing", "-"
				if colorize.ModelsPresent(a.modelsDir, v) {
					info, err := os.Stat(path)
					if err != nil {
						return err
					}
					size = strconv.FormatInt(info.Size(), 10)
					status = filePrecision(a.arch(v), info.Size())
					if withSum {
						if digest, err = weights.FileChecksum(path); err != nil {
							return err
						}
					}
				}
				if v == a.variant {
					selected = status
				}
				row := []string{file, v.String(), size, status}
				if withSum {
					row = append(row, digest)
				}
				table.Append(row)
			}
			table.Render()

			file := colorize.ModelFile(a.variant)
			switch selected {
			case a.precision.String():
				return nil
			case "missing":
				return fmt.Errorf("%s not found in %s", file, a.modelsDir)
			default:
				return fmt.Errorf("%s in %s is not a %s precision %s weight file (want %d bytes)",
					file, a.modelsDir, a.precision, a.variant, expectedSize(a.arch(a.variant), a.precision))
			}
		},
	}
	cmd.Flags().BoolVar(&withSum, "sum", false, "print the SHA-256 of every present file")
	return cmd
}

// filePrecision names the precision whose encoding of arch has exactly size
// bytes.
func filePrecision(arch model.Arch, size int64) string {
	for _, p := range []colorize.Precision{colorize.Full, colorize.Half} {
		if expectedSize(arch, p) == size {
			return p.String()
		}
	}
	return fmt.Sprintf("size mismatch (want %d or %d)",
		expectedSize(arch, colorize.Full), expectedSize(arch, colorize.Half))
}

func expectedSize(arch model.Arch, p colorize.Precision) int64 {
	return int64(weights.NumParams(model.Schedule(arch))) * int64(p.Encoding().Size())
}

func newFetchCmd(a *app) *cobra.Command {
	var (
		all bool
		sum string
	)

	cmd := &cobra.Command{
		Use:   "fetch [URI]",
		Short: "Download weight files into the models directory",
		Long: `Download the weight file of the selected variant from URI, a directory-like
s3://, gs://, https:// or http:// location. URI defaults to $DEOLDIFY_MODEL_URI.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri := a.cfg.ModelURI
			if len(args) == 1 {
				uri = args[0]
			}
			if uri == "" {
				return errors.New("no model URI given and DEOLDIFY_MODEL_URI is not set")
			}

			names := []string{colorize.ModelFile(a.variant)}
			if all {
				names = names[:0]
				for _, v := range variants {
					names = append(names, colorize.ModelFile(v))
				}
			}

			f := fetch.NewFetcher(a.log, nil)
			if sum != "" {
				if len(names) != 1 {
					return errors.New("--sha256 verifies a single file and cannot be combined with --all")
				}
				f.Checksums = map[string]string{names[0]: sum}
			}
			if err := f.Fetch(cmd.Context(), uri, a.modelsDir, names...); err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(a.modelsDir, name))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "download both variants")
	cmd.Flags().StringVar(&sum, "sha256", "", "expected hex SHA-256 of the downloaded file")
	return cmd
}

func newScheduleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "List the tensors of a weight file in storage order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			arch := a.arch(a.variant)
			schedule := model.Schedule(arch)

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"#", "NAME", "SHAPE", "PARAMS"})
			table.SetBorder(false)
			table.SetAutoFormatHeaders(false)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)
			for i, e := range schedule {
				table.Append([]string{
					strconv.Itoa(i),
					e.Name,
					e.Shape.String(),
					strconv.Itoa(e.Shape.NumElements()),
				})
			}
			table.SetFooter([]string{"", arch.Name, fmt.Sprintf("%d convs", arch.ConvCount()), strconv.Itoa(weights.NumParams(schedule))})
			table.Render()
			return nil
		},
	}
}

func newSynthCmd(a *app) *cobra.Command {
	var seed uint64

	cmd := &cobra.Command{
		Use:   "synth [OUT]",
		Short: "Write a weight file with synthetic values",
		Long: `Write a weight file for the selected variant and precision filled with
deterministic synthetic values. OUT defaults to the file name the engine loads
from the models directory. Colorizing with these weights yields a uniform tint.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			out := filepath.Join(a.modelsDir, colorize.ModelFile(a.variant))
			if len(args) == 1 {
				out = args[0]
			}

			store, err := model.Synthesize(a.arch(a.variant), seed)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			//nolint:gosec // G304: output path comes from the command line
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := f.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			if err := weights.Write(f, store, a.precision.Encoding()); err != nil {
				return err
			}

			a.log.Info("synthesized weights", "path", out, "parameters", store.NumParams())
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	return cmd
}
