package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/scidata-tools/wavecore/pkg/wavecore"
	"github.com/scidata-tools/wavecore/pkg/wavelet"
	"github.com/spf13/cobra"
)

// NewInspectCmd dumps a subband-pyramid file's header fields, for
// offline debugging of intermediate transform state.
func NewInspectCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <pyramid-dump>",
		Short: "print a subband-pyramid file's header and session ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			p, err := wavelet.ReadDump(f)
			if err != nil {
				return fmt.Errorf("reading pyramid dump: %w", err)
			}

			id := wavecore.SessionID(wavecore.SessionParams{
				Dims:      p.Dims,
				Transform: transformName(p.Transform),
				Levels:    p.SpatialLevels,
			})

			fmt.Printf("dims:          %s\n", p.Dims.String())
			fmt.Printf("transform:     %s\n", transformName(p.Transform))
			fmt.Printf("spatialLevels: %d\n", p.SpatialLevels)
			fmt.Printf("temporalLevels: %d\n", p.TemporalLevels)
			fmt.Printf("sessionId:     %s\n", id)
			return nil
		},
	}
	return cmd
}

func transformName(t wavelet.TransformType) string {
	if t == wavelet.Packet {
		return "packet"
	}
	return "dyadic"
}
