package he

import "fmt"

// BuildBlockMatMul1DCache extracts every diagonal of mat along mat.Dim()
// and lays the resulting d linearized-polynomial coefficients out flat,
// using the indexing convention named by strategy (spec.md §4.6
// "Constant indexing"): strategy +1 and 0 use index i*d+j, strategy -1
// uses index i+j*D. Under strategy -1 the i-th diagonal is extracted
// pre-rotated by -i along the dimension (rotAmt = i), so that the
// executor's later rotation of that accumulator by +i restores it.
// Non-native dimensions populate a parallel cache1
// with the mask-complement half, exactly as the scalar case (spec.md
// §4.4 "Bad-dimension split").
func BuildBlockMatMul1DCache[E any](ctx Context, mat BlockMatrixDescriptor[E], enc Encoder[E], strategy int) (cache, cache1 []*ConstMultiplier, err error) {
	dim := mat.Dim()
	D := orderForDim(ctx, dim)
	d := mat.D()
	native := ctx.Native(dim)

	size := D * d
	cache = make([]*ConstMultiplier, size)
	if !native {
		cache1 = make([]*ConstMultiplier, size)
	}

	idx := func(i, j int) int {
		if strategy == -1 {
			return i + j*D
		}
		return i*d + j
	}

	for i := 0; i < D; i++ {
		rotAmt := 0
		if strategy == -1 {
			rotAmt = i
		}
		polys, zero, err := processBlockDiagonal(ctx, mat, enc, i, rotAmt)
		if err != nil {
			return nil, nil, err
		}
		if zero {
			continue
		}

		var mask any
		if !native {
			mask, err = enc.Mask(dim, i)
			if err != nil {
				return nil, nil, fmt.Errorf("cannot extract block diagonal %d: %w", i, err)
			}
		}

		for r := 0; r < d; r++ {
			at := idx(i, r)
			if native {
				cache[at] = BuildConstMultiplier(polys[r], enc)
				continue
			}
			poly1, poly2, err := enc.Split(polys[r], mask)
			if err != nil {
				return nil, nil, fmt.Errorf("cannot extract block diagonal %d: %w", i, err)
			}
			cache[at] = BuildConstMultiplier(poly1, enc)
			cache1[at] = BuildConstMultiplier(poly2, enc)
		}
	}
	return cache, cache1, nil
}

// BlockMatMul1DExec plans and executes a block one-dimensional linear
// transformation: each slot holds a length-d vector, and the transform
// acts over the product of the chosen hypercube dimension and the
// Frobenius axis (spec.md §4.6). Grounded on spec.md §4.6 directly (see
// DESIGN.md: the retrieval pack's original_source/ was filtered down to
// the scalar MatMul1D portion of newmatmul.cpp, so this has no surviving
// C++ original to port from).
type BlockMatMul1DExec[E any] struct {
	ctx    Context
	dim    int
	D, d   int
	native bool

	strategy int // 0 minimal, +1 factor-Frobenius, -1 factor-rho
	d0, dim0 int // inner/hoisted axis
	d1, dim1 int // outer axis

	cache, cache1 []*ConstMultiplier
	workers       int
}

// NewBlockMatMul1DExec constructs a BlockMatMul1DExec for mat. minimal
// forces the sequential two-axis path (strategy 0); otherwise the
// factorization is chosen by comparing D (the dimension's order) to d
// (the block size): D >= d factors Frobenius (+1), D < d factors rho
// (-1) (spec.md §4.6).
func NewBlockMatMul1DExec[E any](mat BlockMatrixDescriptor[E], ctx Context, enc Encoder[E], minimal bool, workers int) (*BlockMatMul1DExec[E], error) {
	dim := mat.Dim()
	if dim < -1 || dim > ctx.NumGens() {
		panic(fmt.Errorf("cannot plan BlockMatMul1D: dimension %d out of range", dim))
	}

	D := orderForDim(ctx, dim)
	d := mat.D()
	native := ctx.Native(dim)

	strategy := 1
	switch {
	case minimal:
		strategy = 0
	case D >= d:
		strategy = 1
	default:
		strategy = -1
	}

	cache, cache1, err := BuildBlockMatMul1DCache(ctx, mat, enc, strategy)
	if err != nil {
		return nil, fmt.Errorf("cannot plan BlockMatMul1D: %w", err)
	}

	m := &BlockMatMul1DExec[E]{
		ctx: ctx, dim: dim, D: D, d: d, native: native,
		strategy: strategy, cache: cache, cache1: cache1, workers: workers,
	}
	switch strategy {
	case 1:
		m.d0, m.dim0 = D, dim
		m.d1, m.dim1 = d, -1
	case -1:
		m.d0, m.dim0 = d, -1
		m.d1, m.dim1 = D, dim
	}
	return m, nil
}

// idx returns the flat cache index for hoist-axis position i and
// outer-axis position j, matching the layout BuildBlockMatMul1DCache
// used (spec.md §4.6 "Constant indexing").
func (m *BlockMatMul1DExec[E]) idx(i, j int) int {
	if m.strategy == -1 {
		// Hoisted i is the Frobenius coordinate, outer j the diagonal.
		return j + i*m.D
	}
	return i*m.d + j
}

// Mul executes the planned transformation against ctxt, returning the
// transformed ciphertext; ctxt is not mutated. pk is required for the
// +1/-1 hoisted paths and may be nil when the executor was built with
// minimal == true (spec.md §4.6).
func (m *BlockMatMul1DExec[E]) Mul(ctxt Ciphertext, pk PublicKey) (Ciphertext, error) {
	if m.strategy == 0 {
		return m.mulMinimal(ctxt), nil
	}
	return m.mulHoisted(ctxt, pk)
}

// mulHoisted implements the buffered parallel hoist of spec.md §4.6's
// strategy ±1 path: a GeneralAutomorphPrecon on the inner (hoisted) axis
// is consulted in chunks of at most ParBufMax, each chunk's rotated
// ciphertexts feeding every outer-axis accumulator before being
// discarded, bounding memory to one chunk's worth of rotations.
func (m *BlockMatMul1DExec[E]) mulHoisted(ctxt Ciphertext, pk PublicKey) (Ciphertext, error) {
	ctxt = ctxt.Clone()
	ctxt.CleanUp()

	precon, err := BuildGeneralAutomorphPrecon(ctxt, m.dim0, m.ctx, pk, m.workers)
	if err != nil {
		return nil, fmt.Errorf("cannot execute BlockMatMul1D: %w", err)
	}

	acc := make([]Ciphertext, m.d1)
	for j := range acc {
		acc[j] = ctxt.ZeroLike()
	}
	var acc1 []Ciphertext
	if !m.native {
		acc1 = make([]Ciphertext, m.d1)
		for j := range acc1 {
			acc1[j] = ctxt.ZeroLike()
		}
	}

	chunk := m.d0
	if chunk > ParBufMax {
		chunk = ParBufMax
	}
	if chunk < 1 {
		chunk = 1
	}

	for first := 0; first < m.d0; first += chunk {
		last := first + chunk
		if last > m.d0 {
			last = m.d0
		}

		buf := make([]Ciphertext, last-first)
		pool := newWorkerPool(m.workers)
		for i := first; i < last; i++ {
			i := i
			pool.Run(func(int) error {
				buf[i-first] = precon.Automorph(i)
				return nil
			})
		}
		if err := pool.Wait(); err != nil {
			return nil, fmt.Errorf("cannot execute BlockMatMul1D: %w", err)
		}

		for i := first; i < last; i++ {
			b := buf[i-first]
			for j := 0; j < m.d1; j++ {
				at := m.idx(i, j)
				MulAdd(acc[j], m.cache[at], b)
				if !m.native {
					MulAdd(acc1[j], m.cache1[at], b)
				}
			}
		}
	}

	pinfo := NewPartitionInfo(m.d1, m.workers)
	rpool := newWorkerPool(m.workers)

	final, final1, err := pinfo.Run(rpool, func(index, first, last int) (Ciphertext, Ciphertext) {
		accInner := ctxt.ZeroLike()
		var accInner1 Ciphertext
		if !m.native {
			accInner1 = ctxt.ZeroLike()
		}
		for j := first; j < last; j++ {
			if j > 0 {
				acc[j].SmartAutomorph(m.ctx.GenToPow(m.dim1, j))
				if !m.native {
					acc1[j].SmartAutomorph(m.ctx.GenToPow(m.dim1, j))
				}
			}
			accInner.Add(acc[j])
			if !m.native {
				accInner1.Add(acc1[j])
			}
		}
		return accInner, accInner1
	})
	if err != nil {
		return nil, fmt.Errorf("cannot execute BlockMatMul1D: %w", err)
	}

	if m.native {
		return final, nil
	}
	final1.SmartAutomorph(m.ctx.GenToPow(m.dim, -m.D))
	final.Add(final1)
	return final, nil
}

// mulMinimal implements the strategy 0 sequential path: nested loops
// over the dimension axis (sh) and the Frobenius axis (sh1), relying
// only on single-step key-switching matrices (spec.md §4.6).
func (m *BlockMatMul1DExec[E]) mulMinimal(ctxt Ciphertext) Ciphertext {
	ctxt = ctxt.Clone()
	ctxt.CleanUp()

	acc := ctxt.ZeroLike()
	var acc1 Ciphertext
	if !m.native {
		acc1 = ctxt.ZeroLike()
	}

	sh := ctxt.Clone()
	for i := 0; i < m.D; i++ {
		if i > 0 {
			sh.SmartAutomorph(m.ctx.GenToPow(m.dim, 1))
		}
		sh1 := sh.Clone()
		for j := 0; j < m.d; j++ {
			if j > 0 {
				sh1.SmartAutomorph(m.ctx.GenToPow(-1, 1))
			}
			at := i*m.d + j
			MulAdd(acc, m.cache[at], sh1)
			if !m.native {
				MulAdd(acc1, m.cache1[at], sh1)
			}
		}
	}
	if !m.native {
		acc1.SmartAutomorph(m.ctx.GenToPow(m.dim, -m.D))
		acc.Add(acc1)
	}
	return acc
}
