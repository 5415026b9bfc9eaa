package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scidata-tools/wavecore/pkg/wavecore"
)

// parseDims parses "NXxNY" or "NXxNYxNZ" into a Dims, matching the
// --dims flag's CLI-level contract.
func parseDims(s string) (wavecore.Dims, error) {
	parts := strings.Split(s, "x")
	if len(parts) != 2 && len(parts) != 3 {
		return wavecore.Dims{}, fmt.Errorf("--dims must be NXxNY or NXxNYxNZ, got %q", s)
	}
	vals := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return wavecore.Dims{}, fmt.Errorf("--dims: invalid extent %q: %w", p, err)
		}
		vals[i] = v
	}
	d := wavecore.Dims{NX: vals[0], NY: vals[1], NZ: 1}
	if len(vals) == 3 {
		d.NZ = vals[2]
	}
	return d, nil
}
