// Package morphology implements dilation and erosion of labeled volumes
// using the full 3x3x3 stencil (3x3 for 2D volumes, all elements on).
//
// Two modes are supported. Multilabel dilation assigns the most frequent
// nonzero label among a voxel's stencil neighborhood, with ties broken by
// the lowest label id; multilabel erosion keeps a foreground voxel only if
// the entire neighborhood carries the identical value. Grayscale mode takes
// the elementwise maximum (dilate) or minimum (erode) over the neighborhood.
//
// Each pass reads an immutable snapshot of the previous pass's volume and
// writes to a freshly allocated output, so workers never observe each
// other's writes.
package morphology

import (
	"fmt"
	"runtime"

	"golang.org/x/exp/constraints"
	"golang.org/x/sync/errgroup"

	"volmorph/pkg/volume"
)

// Mode selects between multilabel-consensus and grayscale stencil kernels.
type Mode int

const (
	// Multilabel uses the plurality vote of the stencil (dilate) or the
	// all-neighbors-identical rule (erode).
	Multilabel Mode = iota

	// Grey uses the stencil maximum (dilate) or minimum (erode).
	Grey
)

// DilateOptions configures Dilate.
type DilateOptions struct {
	// BackgroundOnly restricts recomputation to voxels currently at 0.
	// When false, every voxel is recomputed, so growing labels may
	// overwrite each other's adjacent territory.
	BackgroundOnly bool

	// Mode selects the kernel. BackgroundOnly has no effect under Grey.
	Mode Mode

	// Iterations applies the one-pass kernel repeatedly, each pass
	// consuming the previous pass's full output. 0 returns an unchanged
	// copy; negative values are invalid.
	Iterations int

	// Parallelism bounds the worker pool; 0 means all available CPUs.
	Parallelism int
}

// DefaultDilateOptions returns the options matching the operation contract
// defaults: background-only multilabel dilation, one iteration, all CPUs.
func DefaultDilateOptions() DilateOptions {
	return DilateOptions{BackgroundOnly: true, Iterations: 1}
}

// ErodeOptions configures Erode.
type ErodeOptions struct {
	// ErodeBorder controls the missing-neighbor policy at the volume
	// boundary for multilabel erosion: true treats out-of-bounds neighbors
	// as background, false treats them as matching the center voxel.
	ErodeBorder bool

	// Mode selects the kernel. ErodeBorder has no effect under Grey.
	Mode Mode

	// Iterations and Parallelism behave as in DilateOptions.
	Iterations  int
	Parallelism int
}

// DefaultErodeOptions returns the operation contract defaults: multilabel
// erosion with border voxels treated as background, one iteration, all CPUs.
func DefaultErodeOptions() ErodeOptions {
	return ErodeOptions{ErodeBorder: true, Iterations: 1}
}

// Dilate grows foreground labels by one stencil radius per iteration.
func Dilate[T volume.Label](vol *volume.Volume[T], opts DilateOptions) (*volume.Volume[T], error) {
	if err := checkIterations(opts.Iterations); err != nil {
		return nil, err
	}
	if opts.Iterations == 0 {
		return vol.Clone(), nil
	}
	cur := vol
	for i := 0; i < opts.Iterations; i++ {
		out := newLike(cur)
		switch opts.Mode {
		case Multilabel:
			forEachSlab(cur.Sz, opts.Parallelism, func(z0, z1 int) {
				dilatePass(cur, out, opts.BackgroundOnly, z0, z1)
			})
		case Grey:
			forEachSlab(cur.Sz, opts.Parallelism, func(z0, z1 int) {
				greyPass(cur, out, ordMax[T], z0, z1)
			})
		default:
			return nil, fmt.Errorf("unknown morphology mode %d: %w", opts.Mode, volume.ErrInvalidArgument)
		}
		cur = out
	}
	return cur, nil
}

// Erode shrinks foreground labels by one stencil radius per iteration.
func Erode[T volume.Label](vol *volume.Volume[T], opts ErodeOptions) (*volume.Volume[T], error) {
	if err := checkIterations(opts.Iterations); err != nil {
		return nil, err
	}
	if opts.Iterations == 0 {
		return vol.Clone(), nil
	}
	cur := vol
	for i := 0; i < opts.Iterations; i++ {
		out := newLike(cur)
		switch opts.Mode {
		case Multilabel:
			forEachSlab(cur.Sz, opts.Parallelism, func(z0, z1 int) {
				erodePass(cur, out, opts.ErodeBorder, z0, z1)
			})
		case Grey:
			forEachSlab(cur.Sz, opts.Parallelism, func(z0, z1 int) {
				greyPass(cur, out, ordMin[T], z0, z1)
			})
		default:
			return nil, fmt.Errorf("unknown morphology mode %d: %w", opts.Mode, volume.ErrInvalidArgument)
		}
		cur = out
	}
	return cur, nil
}

// CompositeOptions configures the single-iteration Open and Close
// composites.
type CompositeOptions struct {
	BackgroundOnly bool
	ErodeBorder    bool
	Mode           Mode
	Parallelism    int
}

// DefaultCompositeOptions mirrors the dilate and erode defaults.
func DefaultCompositeOptions() CompositeOptions {
	return CompositeOptions{BackgroundOnly: true, ErodeBorder: true}
}

// Open performs a morphological opening (erode then dilate). The operator is
// idempotent except for boundary effects.
func Open[T volume.Label](vol *volume.Volume[T], opts CompositeOptions) (*volume.Volume[T], error) {
	eroded, err := Erode(vol, ErodeOptions{
		ErodeBorder: opts.ErodeBorder,
		Mode:        opts.Mode,
		Iterations:  1,
		Parallelism: opts.Parallelism,
	})
	if err != nil {
		return nil, err
	}
	return Dilate(eroded, DilateOptions{
		BackgroundOnly: opts.BackgroundOnly,
		Mode:           opts.Mode,
		Iterations:     1,
		Parallelism:    opts.Parallelism,
	})
}

// Close performs a morphological closing (dilate then erode). The operator
// is idempotent except for boundary effects.
func Close[T volume.Label](vol *volume.Volume[T], opts CompositeOptions) (*volume.Volume[T], error) {
	dilated, err := Dilate(vol, DilateOptions{
		BackgroundOnly: opts.BackgroundOnly,
		Mode:           opts.Mode,
		Iterations:     1,
		Parallelism:    opts.Parallelism,
	})
	if err != nil {
		return nil, err
	}
	return Erode(dilated, ErodeOptions{
		ErodeBorder: opts.ErodeBorder,
		Mode:        opts.Mode,
		Iterations:  1,
		Parallelism: opts.Parallelism,
	})
}

// axisReach is the stencil half-width along one axis: 1 normally, 0 for an
// axis of extent 1.
func axisReach(extent int) int {
	if extent > 1 {
		return 1
	}
	return 0
}

func checkIterations(n int) error {
	if n < 0 {
		return fmt.Errorf("iterations (%d) must be a non-negative integer: %w", n, volume.ErrInvalidArgument)
	}
	return nil
}

func newLike[T volume.Label](v *volume.Volume[T]) *volume.Volume[T] {
	out, err := volume.New[T](v.Sx, v.Sy, v.Sz)
	if err != nil {
		// The source volume already carries valid dimensions.
		panic(err)
	}
	return out
}

// forEachSlab partitions [0, sz) along the slowest-varying axis and runs fn
// on each slab from a bounded worker pool. Workers share no mutable state:
// each writes exclusively to its own z-range of the output buffer.
func forEachSlab(sz, parallelism int, fn func(z0, z1 int)) {
	workers := parallelism
	if workers <= 0 || workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	if workers > sz {
		workers = sz
	}
	if workers <= 1 {
		fn(0, sz)
		return
	}
	chunk := (sz + workers - 1) / workers
	var g errgroup.Group
	for z0 := 0; z0 < sz; z0 += chunk {
		z1 := z0 + chunk
		if z1 > sz {
			z1 = sz
		}
		z0, z1 := z0, z1
		g.Go(func() error {
			fn(z0, z1)
			return nil
		})
	}
	// Slab workers are pure computations over disjoint output ranges and
	// never return errors.
	_ = g.Wait()
}

// dilatePass computes one multilabel dilation pass over z in [z0, z1).
func dilatePass[T volume.Label](src, dst *volume.Volume[T], backgroundOnly bool, z0, z1 int) {
	sx, sy, sz := src.Sx, src.Sy, src.Sz
	var neigh [27]T
	for z := z0; z < z1; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				loc := src.Index(x, y, z)
				if backgroundOnly && src.Data[loc] != 0 {
					dst.Data[loc] = src.Data[loc]
					continue
				}
				n := 0
				for dz := -1; dz <= 1; dz++ {
					zz := z + dz
					if zz < 0 || zz >= sz {
						continue
					}
					for dy := -1; dy <= 1; dy++ {
						yy := y + dy
						if yy < 0 || yy >= sy {
							continue
						}
						row := src.Index(0, yy, zz)
						for dx := -1; dx <= 1; dx++ {
							xx := x + dx
							if xx < 0 || xx >= sx {
								continue
							}
							if val := src.Data[row+xx]; val != 0 {
								neigh[n] = val
								n++
							}
						}
					}
				}
				dst.Data[loc] = plurality(neigh[:n])
			}
		}
	}
}

// plurality returns the most frequent value, breaking ties by the lowest
// label id. The input is the gathered nonzero stencil neighborhood; an empty
// neighborhood yields background.
func plurality[T volume.Label](vals []T) T {
	if len(vals) == 0 {
		return 0
	}
	insertionSort(vals)
	best := vals[0]
	bestCt := 1
	ct := 1
	for i := 1; i < len(vals); i++ {
		if vals[i] == vals[i-1] {
			ct++
			continue
		}
		if ct > bestCt {
			best = vals[i-1]
			bestCt = ct
		}
		ct = 1
	}
	if ct > bestCt {
		best = vals[len(vals)-1]
	}
	return best
}

// erodePass computes one multilabel erosion pass over z in [z0, z1). Axes of
// extent 1 (the flat axis of a 2D volume) contribute no stencil neighbors and
// never trigger the border policy.
func erodePass[T volume.Label](src, dst *volume.Volume[T], erodeBorder bool, z0, z1 int) {
	sx, sy, sz := src.Sx, src.Sy, src.Sz
	xr, yr, zr := axisReach(sx), axisReach(sy), axisReach(sz)
	for z := z0; z < z1; z++ {
		for y := 0; y < sy; y++ {
		voxels:
			for x := 0; x < sx; x++ {
				loc := src.Index(x, y, z)
				v := src.Data[loc]
				if v == 0 {
					continue
				}
				for dz := -zr; dz <= zr; dz++ {
					for dy := -yr; dy <= yr; dy++ {
						for dx := -xr; dx <= xr; dx++ {
							if dx == 0 && dy == 0 && dz == 0 {
								continue
							}
							xx, yy, zz := x+dx, y+dy, z+dz
							if xx < 0 || xx >= sx || yy < 0 || yy >= sy || zz < 0 || zz >= sz {
								if erodeBorder {
									continue voxels
								}
								continue
							}
							if src.Data[src.Index(xx, yy, zz)] != v {
								continue voxels
							}
						}
					}
				}
				dst.Data[loc] = v
			}
		}
	}
}

// greyPass computes one grayscale pass over z in [z0, z1), folding the
// stencil neighborhood (including the center) with pick.
func greyPass[T volume.Label](src, dst *volume.Volume[T], pick func(a, b T) T, z0, z1 int) {
	sx, sy, sz := src.Sx, src.Sy, src.Sz
	for z := z0; z < z1; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				loc := src.Index(x, y, z)
				acc := src.Data[loc]
				for dz := -1; dz <= 1; dz++ {
					zz := z + dz
					if zz < 0 || zz >= sz {
						continue
					}
					for dy := -1; dy <= 1; dy++ {
						yy := y + dy
						if yy < 0 || yy >= sy {
							continue
						}
						row := src.Index(0, yy, zz)
						for dx := -1; dx <= 1; dx++ {
							xx := x + dx
							if xx < 0 || xx >= sx {
								continue
							}
							acc = pick(acc, src.Data[row+xx])
						}
					}
				}
				dst.Data[loc] = acc
			}
		}
	}
}

func ordMax[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func ordMin[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// insertionSort sorts a tiny slice in place. Stencil neighborhoods hold at
// most 27 values, where this beats the generic sort.
func insertionSort[T constraints.Ordered](vals []T) {
	for i := 1; i < len(vals); i++ {
		v := vals[i]
		j := i - 1
		for j >= 0 && vals[j] > v {
			vals[j+1] = vals[j]
			j--
		}
		vals[j+1] = v
	}
}
