package cmd

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"github.com/scidata-tools/wavecore/pkg/wavecodec"
	"github.com/spf13/cobra"
)

// NewDecodeCmd reads a wavelet bitstream (-d) and writes the
// reconstructed raw little-endian f64 samples to -r/--recon.
func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "decode a wavelet bitstream back into raw f64 samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			dimsFlag, _ := cmd.Flags().GetString("dims")
			d, err := parseDims(dimsFlag)
			if err != nil {
				return err
			}
			inPath, _ := cmd.Flags().GetString("bitstream")
			if inPath == "" {
				return fmt.Errorf("-d/--bitstream is required")
			}
			reconPath, _ := cmd.Flags().GetString("recon")
			if reconPath == "" {
				return fmt.Errorf("-r/--recon is required")
			}

			data, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("reading %s: %w", inPath, err)
			}

			opts := wavecodec.DefaultOptions()
			opts.Logger = slog.Default()

			samples, err := wavecodec.Decode(ctx, d, data, opts)
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}

			out, err := os.Create(reconPath)
			if err != nil {
				return fmt.Errorf("creating %s: %w", reconPath, err)
			}
			defer out.Close()
			if err := binary.Write(out, binary.LittleEndian, samples); err != nil {
				return fmt.Errorf("writing %s: %w", reconPath, err)
			}
			slog.InfoContext(ctx, "decode complete", "dims", d.String(), "samples", len(samples))
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.String("dims", "", "sample grid extent, NXxNY or NXxNYxNZ")
	pf.StringP("bitstream", "d", "", "encoded bitstream input path")
	pf.StringP("recon", "r", "", "reconstructed raw samples output path")
	cmd.MarkPersistentFlagRequired("dims")
	return cmd
}
