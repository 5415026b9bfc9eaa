package cmd

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"

	"github.com/scidata-tools/wavecore/pkg/bitplane"
	"github.com/scidata-tools/wavecore/pkg/wavecodec"
	"github.com/spf13/cobra"
)

// NewEncodeCmd reads a raw little-endian f64 sample file, runs the
// full conditioner -> wavelet -> quantize -> bit-plane pipeline, and
// writes the resulting bitstream to -z/--out.
func NewEncodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encode <samples.raw>",
		Short: "encode a raw f64 sample file into a wavelet bitstream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dimsFlag, _ := cmd.Flags().GetString("dims")
			d, err := parseDims(dimsFlag)
			if err != nil {
				return err
			}
			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				return fmt.Errorf("-z/--out is required")
			}
			pwe, _ := cmd.Flags().GetFloat64("pwe")
			psnr, _ := cmd.Flags().GetFloat64("psnr")
			budgetBits, _ := cmd.Flags().GetInt("budget-bits")
			useTarp, _ := cmd.Flags().GetBool("tarp")

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			samples := make([]float64, d.Volume())
			if err := binary.Read(f, binary.LittleEndian, samples); err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			opts := wavecodec.DefaultOptions()
			opts.Logger = slog.Default()
			if useTarp {
				opts.Engine = bitplane.TarpEngine
			}
			switch {
			case pwe > 0:
				opts.Target = bitplane.Target{Kind: bitplane.FixedPWE, PWE: pwe}
			case psnr > 0:
				opts.Target = bitplane.Target{Kind: bitplane.FixedPSNR, PSNRTargetDB: psnr, DataRange: rangeOf(samples)}
			case budgetBits > 0:
				opts.Target = bitplane.Target{Kind: bitplane.FixedSize, BudgetBits: budgetBits}
			}

			data, err := wavecodec.Encode(ctx, d, samples, opts)
			if err != nil {
				return fmt.Errorf("encode: %w", err)
			}

			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", outPath, err)
			}
			slog.InfoContext(ctx, "encode complete", "dims", d.String(), "bytes", len(data))
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.String("dims", "", "sample grid extent, NXxNY or NXxNYxNZ")
	pf.StringP("out", "z", "", "bitstream output path")
	pf.Float64("pwe", 0, "fixed point-wise-error target quantization")
	pf.Float64("psnr", 0, "fixed PSNR target in dB")
	pf.Int("budget-bits", 0, "fixed bit budget (0 = unlimited)")
	pf.Bool("tarp", false, "use the TCE/Tarp bit-plane engine instead of SPECK")
	cmd.MarkPersistentFlagRequired("dims")
	return cmd
}

func rangeOf(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	lo, hi := data[0], data[0]
	for _, v := range data[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return hi - lo
}
