// Package grid implements the broad-phase uniform spatial hash the solver
// rebuilds from predicted positions once per outer grid iteration: a
// fixed-origin, fixed-cell-size 3D grid whose cell-id/particle-id pairs
// are counting-sorted into a flat cellStart/sortedParticleId layout.
// Grounded in the teacher's SpatialHashGrid (mod_spatialgrid.go) for the
// cell-hash/query shape, adapted from its map-of-buckets design to the
// flat sorted-array layout the solver's determinism requirements call for.
package grid

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Grid is a uniform 3D spatial hash rebuilt from scratch on every Build
// call. All of its arrays grow monotonically (never shrink) so repeated
// Build calls on a non-increasing particle count never reallocate.
type Grid struct {
	Origin   mgl32.Vec3
	CellSize float32
	Dims     [3]int32 // Gx, Gy, Gz

	CellStart        []int32 // len() == numCells(), -1 for empty cells
	SortedCellId     []int32 // len() == n after Build
	SortedParticleId []int32 // len() == n after Build

	cellIdScratch []int32 // per-particle cell id before sort
	cursorScratch []int32 // per-cell write cursor during counting sort
}

// NewGrid allocates a grid over the box [origin, origin + dims*cellSize).
func NewGrid(origin mgl32.Vec3, cellSize float32, dims [3]int32) *Grid {
	if cellSize <= 0 {
		panic("grid: cellSize must be positive")
	}
	for _, d := range dims {
		if d <= 0 {
			panic("grid: grid dimensions must be positive")
		}
	}
	numCells := int(dims[0]) * int(dims[1]) * int(dims[2])
	g := &Grid{
		Origin:        origin,
		CellSize:      cellSize,
		Dims:          dims,
		CellStart:     make([]int32, numCells),
		cursorScratch: make([]int32, numCells),
	}
	for i := range g.CellStart {
		g.CellStart[i] = -1
	}
	return g
}

func (g *Grid) numCells() int {
	return int(g.Dims[0]) * int(g.Dims[1]) * int(g.Dims[2])
}

// OccupiedCells returns how many cells held at least one particle after the
// last Build call, a coarse occupancy figure used only for diagnostics.
func (g *Grid) OccupiedCells() int {
	count := 0
	for _, c := range g.CellStart {
		if c >= 0 {
			count++
		}
	}
	return count
}

// cellCoords maps a world position to clamped, non-negative integer cell
// coordinates. Particles outside the grid are clipped into the boundary
// cell rather than rejected; plane constraints are responsible for
// keeping particles from escaping in the first place.
func (g *Grid) cellCoords(p mgl32.Vec3) (int32, int32, int32) {
	local := p.Sub(g.Origin).Mul(1 / g.CellSize)
	ix := clampAxis(int32(math.Floor(float64(local.X()))), g.Dims[0])
	iy := clampAxis(int32(math.Floor(float64(local.Y()))), g.Dims[1])
	iz := clampAxis(int32(math.Floor(float64(local.Z()))), g.Dims[2])
	return ix, iy, iz
}

func clampAxis(v, dim int32) int32 {
	if v < 0 {
		return 0
	}
	if v >= dim {
		return dim - 1
	}
	return v
}

func (g *Grid) linearize(ix, iy, iz int32) int32 {
	return ix + iy*g.Dims[0] + iz*g.Dims[0]*g.Dims[1]
}

// ensureScratch grows the per-particle scratch arrays to at least n,
// preserving the monotonic-growth-only contract of the sort's scratch
// buffer.
func (g *Grid) ensureScratch(n int) {
	if cap(g.cellIdScratch) < n {
		g.cellIdScratch = make([]int32, n)
		g.SortedCellId = make([]int32, n)
		g.SortedParticleId = make([]int32, n)
	}
	g.cellIdScratch = g.cellIdScratch[:n]
	g.SortedCellId = g.SortedCellId[:n]
	g.SortedParticleId = g.SortedParticleId[:n]
}

// Build rebuilds the grid from the first n entries of predicted, following
// the four phases of the spec exactly: reset cellStart, assign cell ids,
// stable-sort by cell id, then scan the sorted array to find per-cell
// starts. The sort is a counting sort over the bounded cell-id range,
// which is stable and allocation-free after the first call at a given n.
func (g *Grid) Build(predicted []mgl32.Vec3, n int) {
	g.ensureScratch(n)

	// 1. reset
	for i := range g.CellStart {
		g.CellStart[i] = -1
	}
	if n == 0 {
		return
	}

	// 2. assign
	for i := 0; i < n; i++ {
		ix, iy, iz := g.cellCoords(predicted[i])
		g.cellIdScratch[i] = g.linearize(ix, iy, iz)
	}

	// 3. sort (counting sort, stable)
	numCells := g.numCells()
	for i := range g.cursorScratch {
		g.cursorScratch[i] = 0
	}
	for i := 0; i < n; i++ {
		g.cursorScratch[g.cellIdScratch[i]]++
	}
	sum := int32(0)
	for c := 0; c < numCells; c++ {
		count := g.cursorScratch[c]
		g.cursorScratch[c] = sum
		sum += count
	}
	for i := 0; i < n; i++ {
		c := g.cellIdScratch[i]
		pos := g.cursorScratch[c]
		g.cursorScratch[c]++
		g.SortedCellId[pos] = c
		g.SortedParticleId[pos] = int32(i)
	}

	// 4. find starts
	g.CellStart[g.SortedCellId[0]] = 0
	for k := 1; k < n; k++ {
		if g.SortedCellId[k] != g.SortedCellId[k-1] {
			g.CellStart[g.SortedCellId[k]] = int32(k)
		}
	}
}

// ForEachNeighbor scans the (2*radiusCells+1)^3 cells around particle i's
// cell and calls fn once per candidate neighbor index j (including i
// itself). radiusCells=1 gives the standard 27-cell neighborhood.
func (g *Grid) ForEachNeighbor(i int, predicted []mgl32.Vec3, n int, radiusCells int32, fn func(j int)) {
	ix, iy, iz := g.cellCoords(predicted[i])
	for dx := -radiusCells; dx <= radiusCells; dx++ {
		cx := ix + dx
		if cx < 0 || cx >= g.Dims[0] {
			continue
		}
		for dy := -radiusCells; dy <= radiusCells; dy++ {
			cy := iy + dy
			if cy < 0 || cy >= g.Dims[1] {
				continue
			}
			for dz := -radiusCells; dz <= radiusCells; dz++ {
				cz := iz + dz
				if cz < 0 || cz >= g.Dims[2] {
					continue
				}
				cell := g.linearize(cx, cy, cz)
				start := g.CellStart[cell]
				if start < 0 {
					continue
				}
				for k := start; k < int32(n) && g.SortedCellId[k] == cell; k++ {
					fn(int(g.SortedParticleId[k]))
				}
			}
		}
	}
}
