package he

import "fmt"

// MatMul1DExec plans and executes a scalar one-dimensional linear
// transformation over the slots of a ciphertext along a single
// hypercube dimension (spec.md §4.5). Grounded on newmatmul.cpp's
// MatMul1DExec.
type MatMul1DExec[E any] struct {
	ctx     Context
	dim     int
	d       int // D, the order of dim
	native  bool
	g       int // giant-step size; 0 means no BSGS
	minimal bool
	cache   *ConstMultiplierCache
	workers int
}

// NewMatMul1DExec constructs a MatMul1DExec for mat, extracting every
// diagonal into the internal cache. minimal requests the single-key,
// sequential execution path (spec.md §4.5: "set giant step g = 0 if
// D <= BSGSThreshold or minimal, else g = KSGiantStepSize(D)").
// workers bounds the parallelism used by Mul; construction itself is
// sequential.
func NewMatMul1DExec[E any](mat MatrixDescriptor[E], ctx Context, enc Encoder[E], minimal bool, workers int) (*MatMul1DExec[E], error) {
	dim := mat.Dim()
	if dim < -1 || dim > ctx.NumGens() {
		panic(fmt.Errorf("cannot plan MatMul1D: dimension %d out of range", dim))
	}

	D := orderForDim(ctx, dim)
	native := ctx.Native(dim)

	g := 0
	if D > BSGSThreshold && !minimal {
		g = KSGiantStepSize(D)
	}

	cache, err := BuildMatMul1DCache(ctx, mat, enc, g)
	if err != nil {
		return nil, fmt.Errorf("cannot plan MatMul1D: %w", err)
	}

	return &MatMul1DExec[E]{
		ctx: ctx, dim: dim, d: D, native: native, g: g,
		minimal: minimal, cache: cache, workers: workers,
	}, nil
}

// Mul executes the planned transformation against ctxt and returns the
// transformed ciphertext; ctxt itself is not mutated. pk supplies the
// key-switching strategy and matrices consulted by every path except
// the minimal one, which only ever issues single-step rotations
// (spec.md §4.5: "this path assumes only the single-step key-switching
// matrix is present"); pk may be nil when the executor was built with
// minimal == true.
func (m *MatMul1DExec[E]) Mul(ctxt Ciphertext, pk PublicKey) (Ciphertext, error) {
	ctxt = ctxt.Clone()
	ctxt.CleanUp()

	switch {
	case m.g != 0:
		return m.mulBSGS(ctxt, pk)
	case !m.minimal:
		return m.mulGeneral(ctxt, pk)
	default:
		return m.mulMinimal(ctxt), nil
	}
}

// mulBSGS implements the g>0 baby-step/giant-step path, native and
// non-native, per the table in spec.md §4.5.
func (m *MatMul1DExec[E]) mulBSGS(ctxt Ciphertext, pk PublicKey) (Ciphertext, error) {
	D, g := m.d, m.g
	nintervals := divc(D, g)

	babySteps, err := GenBabySteps(ctxt, m.dim, m.ctx, pk, g, true, m.workers)
	if err != nil {
		return nil, fmt.Errorf("cannot execute MatMul1D: %w", err)
	}

	pinfo := NewPartitionInfo(nintervals, m.workers)
	pool := newWorkerPool(m.workers)

	acc, acc1, err := pinfo.Run(pool, func(index, first, last int) (Ciphertext, Ciphertext) {
		accInner := ctxt.ZeroLike()
		var accInner1 Ciphertext
		if !m.native {
			accInner1 = ctxt.ZeroLike()
		}
		for k := first; k < last; k++ {
			inner := ctxt.ZeroLike()
			var inner1 Ciphertext
			if !m.native {
				inner1 = ctxt.ZeroLike()
			}
			for j := 0; j < g; j++ {
				i := j + g*k
				if i >= D {
					break
				}
				MulAdd(inner, m.cache.Cache[i], babySteps[j])
				if !m.native {
					MulAdd(inner1, m.cache.Cache1[i], babySteps[j])
				}
			}
			if k > 0 {
				inner.SmartAutomorph(m.ctx.GenToPow(m.dim, g*k))
				if !m.native {
					inner1.SmartAutomorph(m.ctx.GenToPow(m.dim, g*k))
				}
			}
			accInner.Add(inner)
			if !m.native {
				accInner1.Add(inner1)
			}
		}
		return accInner, accInner1
	})
	if err != nil {
		return nil, fmt.Errorf("cannot execute MatMul1D: %w", err)
	}

	if m.native {
		return acc, nil
	}
	acc1.SmartAutomorph(m.ctx.GenToPow(m.dim, -D))
	acc.Add(acc1)
	return acc, nil
}

// mulGeneral implements the g==0, !minimal path: one GeneralAutomorphPrecon
// fans out across a partitioned [0,D) range (spec.md §4.5).
func (m *MatMul1DExec[E]) mulGeneral(ctxt Ciphertext, pk PublicKey) (Ciphertext, error) {
	precon, err := BuildGeneralAutomorphPrecon(ctxt, m.dim, m.ctx, pk, m.workers)
	if err != nil {
		return nil, fmt.Errorf("cannot execute MatMul1D: %w", err)
	}

	D := m.d
	pinfo := NewPartitionInfo(D, m.workers)
	pool := newWorkerPool(m.workers)

	acc, acc1, err := pinfo.Run(pool, func(index, first, last int) (Ciphertext, Ciphertext) {
		accInner := ctxt.ZeroLike()
		var accInner1 Ciphertext
		if !m.native {
			accInner1 = ctxt.ZeroLike()
		}
		for i := first; i < last; i++ {
			if m.native {
				if m.cache.Cache[i] == nil {
					continue
				}
			} else if m.cache.Cache[i] == nil && m.cache.Cache1[i] == nil {
				continue
			}
			tmp := precon.Automorph(i)
			if m.native {
				DestMulAdd(accInner, m.cache.Cache[i], tmp)
			} else {
				MulAdd(accInner, m.cache.Cache[i], tmp)
				DestMulAdd(accInner1, m.cache.Cache1[i], tmp)
			}
		}
		return accInner, accInner1
	})
	if err != nil {
		return nil, fmt.Errorf("cannot execute MatMul1D: %w", err)
	}

	if m.native {
		return acc, nil
	}
	acc1.SmartAutomorph(m.ctx.GenToPow(m.dim, -D))
	acc.Add(acc1)
	return acc, nil
}

// mulMinimal implements the sequential minimal path: a single running
// ciphertext rotated one step at a time, relying only on the single-step
// key-switching matrix (spec.md §4.5).
func (m *MatMul1DExec[E]) mulMinimal(ctxt Ciphertext) Ciphertext {
	acc := ctxt.ZeroLike()
	var acc1 Ciphertext
	if !m.native {
		acc1 = ctxt.ZeroLike()
	}
	sh := ctxt.Clone()
	for i := 0; i < m.d; i++ {
		if i > 0 {
			sh.SmartAutomorph(m.ctx.GenToPow(m.dim, 1))
		}
		MulAdd(acc, m.cache.Cache[i], sh)
		if !m.native {
			MulAdd(acc1, m.cache.Cache1[i], sh)
		}
	}
	if !m.native {
		acc1.SmartAutomorph(m.ctx.GenToPow(m.dim, -m.d))
		acc.Add(acc1)
	}
	return acc
}
