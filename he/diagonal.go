package he

import "fmt"

// processDiagonal1 extracts the i-th diagonal of mat along mat.Dim() in
// the single-transform case: every slot block shares the same matrix,
// so the extractor builds one length-D column and replicates it across
// slots via the hypercube coordinate map (spec.md §4.4). rotAmt pre-
// rotates the column before packing; BuildMatMul1DCache always passes 0.
// Grounded on newmatmul.cpp's processDiagonal1.
func processDiagonal1[E any](ctx Context, mat MatrixDescriptor[E], enc Encoder[E], idx, rotAmt int) (poly any, zero bool, err error) {
	dim := mat.Dim()
	D := orderForDim(ctx, dim)

	tmpDiag := make([]E, D)
	zDiag := true
	for j := 0; j < D; j++ {
		rotJ := mcMod(j+rotAmt, D)
		entry, empty := mat.Get(mcMod(rotJ-idx, D), rotJ, 0)
		if !empty {
			zDiag = false
			tmpDiag[j] = entry
		}
	}
	if zDiag {
		return nil, true, nil
	}

	n := ctx.Slots()
	diag := make([]E, n)
	if D == 1 {
		for j := range diag {
			diag[j] = tmpDiag[0]
		}
	} else {
		for j := 0; j < n; j++ {
			diag[j] = tmpDiag[ctx.Coordinate(dim, j)]
		}
	}

	poly, err = enc.Encode(diag)
	if err != nil {
		return nil, false, fmt.Errorf("cannot extract diagonal %d: %w", idx, err)
	}
	return poly, false, nil
}

// processDiagonal2 is processDiagonal1's multiple-transforms sibling:
// distinct blocks of slots are subject to distinct matrices, so every
// slot is read directly rather than through a length-D column (spec.md
// §4.4). Grounded on newmatmul.cpp's processDiagonal2.
func processDiagonal2[E any](ctx Context, mat MatrixDescriptor[E], enc Encoder[E], idx, rotAmt int) (poly any, zero bool, err error) {
	dim := mat.Dim()
	D := orderForDim(ctx, dim)
	n := ctx.Slots()

	diag := make([]E, n)
	zDiag := true
	for j := 0; j < n; j++ {
		var blockIdx, innerIdx int
		if D == 1 {
			blockIdx, innerIdx = j, 0
		} else {
			blockIdx, innerIdx = ctx.BreakIndexByDim(j, dim)
			innerIdx = mcMod(innerIdx+rotAmt, D)
		}
		entry, empty := mat.Get(mcMod(innerIdx-idx, D), innerIdx, blockIdx)
		if !empty {
			zDiag = false
			diag[j] = entry
		}
	}
	if zDiag {
		return nil, true, nil
	}

	poly, err = enc.Encode(diag)
	if err != nil {
		return nil, false, fmt.Errorf("cannot extract diagonal %d: %w", idx, err)
	}
	return poly, false, nil
}

// processDiagonal dispatches to processDiagonal1 or processDiagonal2
// depending on mat.MultipleTransforms() (spec.md §4.4).
func processDiagonal[E any](ctx Context, mat MatrixDescriptor[E], enc Encoder[E], idx, rotAmt int) (poly any, zero bool, err error) {
	if mat.MultipleTransforms() {
		return processDiagonal2(ctx, mat, enc, idx, rotAmt)
	}
	return processDiagonal1(ctx, mat, enc, idx, rotAmt)
}

// bsgsSplit returns, for diagonal index i under giant-step size g, the
// baby-step index j and the giant-step index k; the caller derives the
// rotation amount to pre-fuse into the diagonal's constant from k
// (spec.md §4.4 "Rotation fusion amount"). g == 0 selects the no-BSGS
// convention (j=i, k=1).
func bsgsSplit(i, g int) (j, k int) {
	if g != 0 {
		return i % g, i / g
	}
	return i, 1
}

// BuildMatMul1DCache extracts every diagonal of mat along mat.Dim() and
// wraps each into a ConstMultiplier, pre-rotated by the BSGS fusion
// amount, populating Cache (and, for non-native dimensions, Cache1 with
// the mask-complement half) (spec.md §4.4, §4.5). Grounded on
// newmatmul.cpp's MatMul1DExec_construct::apply.
func BuildMatMul1DCache[E any](ctx Context, mat MatrixDescriptor[E], enc Encoder[E], g int) (*ConstMultiplierCache, error) {
	dim := mat.Dim()
	D := orderForDim(ctx, dim)
	native := ctx.Native(dim)

	cache := &ConstMultiplierCache{Cache: make([]*ConstMultiplier, D)}
	if !native {
		cache.Cache1 = make([]*ConstMultiplier, D)
	}

	for i := 0; i < D; i++ {
		_, k := bsgsSplit(i, g)

		poly, zero, err := processDiagonal(ctx, mat, enc, i, 0)
		if err != nil {
			return nil, err
		}
		if zero {
			continue
		}

		if native {
			cm, err := BuildConstMultiplierRotated(poly, dim, -g*k, enc)
			if err != nil {
				return nil, err
			}
			cache.Cache[i] = cm
			continue
		}

		mask, err := enc.Mask(dim, i)
		if err != nil {
			return nil, fmt.Errorf("cannot extract diagonal %d: %w", i, err)
		}
		poly1, poly2, err := enc.Split(poly, mask)
		if err != nil {
			return nil, fmt.Errorf("cannot extract diagonal %d: %w", i, err)
		}
		cm1, err := BuildConstMultiplierRotated(poly1, dim, -g*k, enc)
		if err != nil {
			return nil, err
		}
		cm2, err := BuildConstMultiplierRotated(poly2, dim, D-g*k, enc)
		if err != nil {
			return nil, err
		}
		cache.Cache[i] = cm1
		cache.Cache1[i] = cm2
	}
	return cache, nil
}

// blockColumn reads the linearizing column of a d×d block matrix entry:
// its r-th row's first coordinate, entry[r][0]. A block matrix entry is
// taken to already be a linearized-polynomial matrix (one fully
// determined by a single column under repeated Frobenius application),
// the standard representation for block diagonals (spec.md §4.4 "Block
// case"; see DESIGN.md for this convention).
func blockColumn[E any](entry [][]E, r int) E {
	return entry[r][0]
}

// processBlockDiagonal1 is processDiagonal1 generalized to block
// entries: it builds, for each of the d linearizing coordinates, a
// slot-packed plaintext, then asks the encoder to fold them into the d
// linearized-polynomial coefficients that implement the block's per-slot
// d×d linear map (spec.md §4.4 "Block case").
func processBlockDiagonal1[E any](ctx Context, mat BlockMatrixDescriptor[E], enc Encoder[E], idx, rotAmt int) (polys []any, zero bool, err error) {
	dim := mat.Dim()
	D := orderForDim(ctx, dim)
	d := mat.D()

	tmpDiag := make([][][]E, D)
	zDiag := true
	for j := 0; j < D; j++ {
		rotJ := mcMod(j+rotAmt, D)
		entry, empty := mat.Get(mcMod(rotJ-idx, D), rotJ, 0)
		if !empty {
			zDiag = false
			tmpDiag[j] = entry
		}
	}
	if zDiag {
		return nil, true, nil
	}

	n := ctx.Slots()
	L := make([]any, d)
	for r := 0; r < d; r++ {
		col := make([]E, n)
		if D == 1 {
			v := blockColumn(tmpDiag[0], r)
			for j := range col {
				col[j] = v
			}
		} else {
			for j := 0; j < n; j++ {
				c := ctx.Coordinate(dim, j)
				if tmpDiag[c] != nil {
					col[j] = blockColumn(tmpDiag[c], r)
				}
			}
		}
		poly, err := enc.Encode(col)
		if err != nil {
			return nil, false, fmt.Errorf("cannot extract block diagonal %d: %w", idx, err)
		}
		L[r] = poly
	}

	C, err := enc.BuildLinPolyCoeffs(L)
	if err != nil {
		return nil, false, fmt.Errorf("cannot extract block diagonal %d: %w", idx, err)
	}
	return C, false, nil
}

// processBlockDiagonal2 is processBlockDiagonal1's multiple-transforms
// sibling (spec.md §4.4).
func processBlockDiagonal2[E any](ctx Context, mat BlockMatrixDescriptor[E], enc Encoder[E], idx, rotAmt int) (polys []any, zero bool, err error) {
	dim := mat.Dim()
	D := orderForDim(ctx, dim)
	d := mat.D()
	n := ctx.Slots()

	entries := make([][][]E, n)
	zDiag := true
	for j := 0; j < n; j++ {
		var blockIdx, innerIdx int
		if D == 1 {
			blockIdx, innerIdx = j, 0
		} else {
			blockIdx, innerIdx = ctx.BreakIndexByDim(j, dim)
			innerIdx = mcMod(innerIdx+rotAmt, D)
		}
		entry, empty := mat.Get(mcMod(innerIdx-idx, D), innerIdx, blockIdx)
		if !empty {
			zDiag = false
			entries[j] = entry
		}
	}
	if zDiag {
		return nil, true, nil
	}

	L := make([]any, d)
	for r := 0; r < d; r++ {
		col := make([]E, n)
		for j := 0; j < n; j++ {
			if entries[j] != nil {
				col[j] = blockColumn(entries[j], r)
			}
		}
		poly, err := enc.Encode(col)
		if err != nil {
			return nil, false, fmt.Errorf("cannot extract block diagonal %d: %w", idx, err)
		}
		L[r] = poly
	}

	C, err := enc.BuildLinPolyCoeffs(L)
	if err != nil {
		return nil, false, fmt.Errorf("cannot extract block diagonal %d: %w", idx, err)
	}
	return C, false, nil
}

// processBlockDiagonal dispatches to processBlockDiagonal1 or
// processBlockDiagonal2 depending on mat.MultipleTransforms().
func processBlockDiagonal[E any](ctx Context, mat BlockMatrixDescriptor[E], enc Encoder[E], idx, rotAmt int) (polys []any, zero bool, err error) {
	if mat.MultipleTransforms() {
		return processBlockDiagonal2(ctx, mat, enc, idx, rotAmt)
	}
	return processBlockDiagonal1(ctx, mat, enc, idx, rotAmt)
}
