package wavelet

import "github.com/scidata-tools/wavecore/pkg/wavecore"

// LevelSpec carries independent per-axis-group level counts: Spatial
// drives X and Y, Temporal drives Z. Dyadic transforms always use
// Spatial==Temporal; packet transforms may set them independently
// the Z axis may be transformed more or fewer times than X/Y.
type LevelSpec struct {
	Spatial  int
	Temporal int
}

// Dyadic returns a LevelSpec with both axis groups at the same level
// count, for the ordinary recursive-on-LL decomposition.
func DyadicLevels(l int) LevelSpec {
	return LevelSpec{Spatial: l, Temporal: l}
}

// ForwardND applies the separable N-D CDF 9/7 transform to p.Data in
// place and records the level counts used:
// at each level, pass X, then Y, then Z (skipping an axis once its own
// group's level budget is exhausted), then descend into the new
// approximation corner.
func ForwardND(p *Pyramid, spec LevelSpec) error {
	if !p.Dims.Valid() {
		return wavecore.ErrWrongDims
	}
	g := computeLevelGeometry(p.Dims, spec.Temporal, spec.Spatial)
	nx, ny, nz := p.Dims.NX, p.Dims.NY, p.Dims.NZ
	for lvl := 0; lvl < g.levelsFromFlags(); lvl++ {
		if g.doSpatial[lvl] && nx >= 2 {
			forwardAxisX(p, nx, ny, nz)
		}
		if g.doSpatial[lvl] && ny >= 2 {
			forwardAxisY(p, nx, ny, nz)
		}
		if g.doTemporal[lvl] && nz >= 2 {
			forwardAxisZ(p, nx, ny, nz)
		}
		if g.doSpatial[lvl] {
			nx = g.approxSize[0][lvl]
			ny = g.approxSize[1][lvl]
		}
		if g.doTemporal[lvl] {
			nz = g.approxSize[2][lvl]
		}
	}
	p.SpatialLevels = spec.Spatial
	p.TemporalLevels = spec.Temporal
	if spec.Spatial == spec.Temporal {
		p.Transform = Dyadic
	} else {
		p.Transform = Packet
	}
	return nil
}

// InverseND undoes ForwardND: levels in reverse, and within a level Z,
// then Y, then X.
func InverseND(p *Pyramid, spec LevelSpec) error {
	if !p.Dims.Valid() {
		return wavecore.ErrWrongDims
	}
	g := computeLevelGeometry(p.Dims, spec.Temporal, spec.Spatial)
	levels := g.levelsFromFlags()

	// Recompute the (nx,ny,nz) that were active entering each level so
	// we can replay them in reverse.
	type levelExtent struct{ nx, ny, nz int }
	extents := make([]levelExtent, levels)
	nx, ny, nz := p.Dims.NX, p.Dims.NY, p.Dims.NZ
	for lvl := 0; lvl < levels; lvl++ {
		extents[lvl] = levelExtent{nx, ny, nz}
		if g.doSpatial[lvl] {
			nx = g.approxSize[0][lvl]
			ny = g.approxSize[1][lvl]
		}
		if g.doTemporal[lvl] {
			nz = g.approxSize[2][lvl]
		}
	}
	for lvl := levels - 1; lvl >= 0; lvl-- {
		e := extents[lvl]
		if g.doTemporal[lvl] && e.nz >= 2 {
			inverseAxisZ(p, e.nx, e.ny, e.nz)
		}
		if g.doSpatial[lvl] && e.ny >= 2 {
			inverseAxisY(p, e.nx, e.ny, e.nz)
		}
		if g.doSpatial[lvl] && e.nx >= 2 {
			inverseAxisX(p, e.nx, e.ny, e.nz)
		}
	}
	return nil
}

func (g levelGeometry) levelsFromFlags() int {
	return len(g.doSpatial)
}

func forwardAxisX(p *Pyramid, nx, ny, nz int) {
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			off := wavecore.Linearize(p.Dims, 0, y, z)
			Forward1D(p.Data, off, 1, nx, p.UsePL)
		}
	}
}

func inverseAxisX(p *Pyramid, nx, ny, nz int) {
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			off := wavecore.Linearize(p.Dims, 0, y, z)
			Inverse1D(p.Data, off, 1, nx, p.UsePL)
		}
	}
}

func forwardAxisY(p *Pyramid, nx, ny, nz int) {
	stride := p.Dims.NX
	for z := 0; z < nz; z++ {
		for x := 0; x < nx; x++ {
			off := wavecore.Linearize(p.Dims, x, 0, z)
			Forward1D(p.Data, off, stride, ny, p.UsePL)
		}
	}
}

func inverseAxisY(p *Pyramid, nx, ny, nz int) {
	stride := p.Dims.NX
	for z := 0; z < nz; z++ {
		for x := 0; x < nx; x++ {
			off := wavecore.Linearize(p.Dims, x, 0, z)
			Inverse1D(p.Data, off, stride, ny, p.UsePL)
		}
	}
}

func forwardAxisZ(p *Pyramid, nx, ny, nz int) {
	stride := p.Dims.NX * p.Dims.NY
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			off := wavecore.Linearize(p.Dims, x, y, 0)
			Forward1D(p.Data, off, stride, nz, p.UsePL)
		}
	}
}

func inverseAxisZ(p *Pyramid, nx, ny, nz int) {
	stride := p.Dims.NX * p.Dims.NY
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			off := wavecore.Linearize(p.Dims, x, y, 0)
			Inverse1D(p.Data, off, stride, nz, p.UsePL)
		}
	}
}
