package wavelet

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/scidata-tools/wavecore/pkg/wavecore"
)

// pyramidMagic and the version pair identify the on-disk dump format;
// bumping pyramidVersionMajor is a breaking change, pyramidVersionMinor
// is not.
const (
	pyramidMagic        = "WAVECOREPYR"
	pyramidVersionMajor = 1
	pyramidVersionMinor = 0
)

// WriteDump serializes p as the textual-header/binary-payload pyramid
// file format used for offline debugging and test fixtures, adapting
// dattoascii.c's dataset dump to this codec's subband pyramid: a
// magic line, a version line, the transform type, the decomposition
// level count(s), the extent, then the raw coefficients as
// little-endian f64, row-major, z-major.
func WriteDump(w io.Writer, p *Pyramid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n", pyramidMagic)
	fmt.Fprintf(bw, "%d %d\n", pyramidVersionMajor, pyramidVersionMinor)
	fmt.Fprintf(bw, "%d\n", int(p.Transform))
	if p.Transform == Dyadic {
		fmt.Fprintf(bw, "%d\n", p.SpatialLevels)
	} else {
		fmt.Fprintf(bw, "%d %d\n", p.TemporalLevels, p.SpatialLevels)
	}
	fmt.Fprintf(bw, "%d %d %d\n", p.Dims.NX, p.Dims.NY, p.Dims.NZ)
	if err := bw.Flush(); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, p.Data)
}

// ReadDump parses the format WriteDump emits, rejecting a magic
// mismatch as bitstream corruption and a major version mismatch as
// ErrVersionMismatch (this dump format has exactly one non-test call
// site for that sentinel: the one the wire speck_header payload itself
// has no use for, since its own version is implicit in the caller's
// build).
func ReadDump(r io.Reader) (*Pyramid, error) {
	br := bufio.NewReader(r)

	magic, err := readLine(br)
	if err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}
	if magic != pyramidMagic {
		return nil, wavecore.ErrBitstreamCorrupt
	}

	verLine, err := readLine(br)
	if err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}
	var vmaj, vmin int
	if _, err := fmt.Sscanf(verLine, "%d %d", &vmaj, &vmin); err != nil {
		return nil, wavecore.ErrBitstreamCorrupt
	}
	if vmaj != pyramidVersionMajor {
		return nil, wavecore.ErrVersionMismatch
	}

	transformLine, err := readLine(br)
	if err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}
	var transformID int
	if _, err := fmt.Sscanf(transformLine, "%d", &transformID); err != nil {
		return nil, wavecore.ErrBitstreamCorrupt
	}
	transform := TransformType(transformID)

	levelsLine, err := readLine(br)
	if err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}
	var lt, ls int
	fields := strings.Fields(levelsLine)
	switch len(fields) {
	case 1:
		if _, err := fmt.Sscanf(levelsLine, "%d", &ls); err != nil {
			return nil, wavecore.ErrBitstreamCorrupt
		}
		lt = ls
	case 2:
		if _, err := fmt.Sscanf(levelsLine, "%d %d", &lt, &ls); err != nil {
			return nil, wavecore.ErrBitstreamCorrupt
		}
	default:
		return nil, wavecore.ErrBitstreamCorrupt
	}

	dimsLine, err := readLine(br)
	if err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}
	var nx, ny, nz int
	if _, err := fmt.Sscanf(dimsLine, "%d %d %d", &nx, &ny, &nz); err != nil {
		return nil, wavecore.ErrBitstreamCorrupt
	}

	d := wavecore.Dims{NX: nx, NY: ny, NZ: nz}
	p := NewPyramid(d, transform)
	p.SpatialLevels = ls
	p.TemporalLevels = lt

	if err := binary.Read(br, binary.LittleEndian, p.Data); err != nil {
		return nil, wavecore.ErrBitstreamTruncated
	}
	return p, nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\n"), nil
}
