package he_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Pro7ech/hyperplan/he"
	"github.com/Pro7ech/hyperplan/he/hetest"
)

// scalarValues wraps a flat []int64 into the [D][1]int64 shape
// hetest.NewCiphertext expects for a scalar (blockD == 1) matrix.
func scalarValues(v []int64) [][]int64 {
	out := make([][]int64, len(v))
	for i, x := range v {
		out[i] = []int64{x}
	}
	return out
}

func flatten(grid [][]int64) []int64 {
	out := make([]int64, len(grid))
	for i, row := range grid {
		out[i] = row[0]
	}
	return out
}

// cyclicShiftMatrix returns the D x D matrix implementing a right
// cyclic shift by amt: (M*x)[p] = x[(p-amt) mod D].
func cyclicShiftMatrix(D, amt int) [][]int64 {
	mat := make([][]int64, D)
	for p := range mat {
		mat[p] = make([]int64, D)
		mat[p][mcMod(p-amt, D)] = 1
	}
	return mat
}

func mcMod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}

func allOnesMatrix(D int) [][]int64 {
	mat := make([][]int64, D)
	for p := range mat {
		mat[p] = make([]int64, D)
		for c := range mat[p] {
			mat[p][c] = 1
		}
	}
	return mat
}

func identityMatrix(D int) [][]int64 {
	mat := make([][]int64, D)
	for p := range mat {
		mat[p] = make([]int64, D)
		mat[p][p] = 1
	}
	return mat
}

// runMatMul1D plans and executes mat against v under the given
// strategy configuration, returning the decrypted result.
func runMatMul1D(t *testing.T, ctx *hetest.Context, pk *hetest.PublicKey, mat [][]int64, v []int64, minimal bool, workers int) []int64 {
	t.Helper()
	enc := hetest.NewEncoder(ctx)
	desc := &hetest.DenseMatrix{Mat: mat, DimIdx: 0}

	exec, err := he.NewMatMul1DExec[int64](desc, ctx, enc, minimal, workers)
	require.NoError(t, err)

	ctxt := hetest.NewCiphertext(ctx.D, ctx.OrdP(), ctx.Native(0), scalarValues(v), 0)
	var pub he.PublicKey
	if pk != nil {
		pub = pk
	}
	result, err := exec.Mul(ctxt, pub)
	require.NoError(t, err)

	return flatten(result.(*hetest.Ciphertext).Decode())
}

// TestMatMul1DScalarEquivalence is property 1: the decrypted output of
// MatMul1DExec always equals the plaintext matrix-vector product,
// across the minimal and BSGS (g>0) paths.
func TestMatMul1DScalarEquivalence(t *testing.T) {
	D := 8
	v := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	mat := allOnesMatrix(D)
	want := hetest.ReferenceMatMul(mat, v)

	t.Run("minimal", func(t *testing.T) {
		ctx := hetest.NewContext(D, 1, true)
		got := runMatMul1D(t, ctx, nil, mat, v, true, 2)
		require.Equal(t, want, got)
	})

	t.Run("BSGS", func(t *testing.T) {
		ctx := hetest.NewContext(D, 1, true)
		pk := hetest.NewPublicKey(ctx, he.KSFull)
		got := runMatMul1D(t, ctx, pk, mat, v, false, 2)
		require.Equal(t, want, got)
	})
}

// TestMatMul1DScenarioS1 is S1: D=4 native identity, v unchanged.
func TestMatMul1DScenarioS1(t *testing.T) {
	ctx := hetest.NewContext(4, 1, true)
	pk := hetest.NewPublicKey(ctx, he.KSFull)
	v := []int64{1, 2, 3, 4}
	got := runMatMul1D(t, ctx, pk, identityMatrix(4), v, false, 2)
	require.Equal(t, v, got)
}

// TestMatMul1DScenarioS2 is S2: D=4 native cyclic right-shift by 1,
// v=[1,2,3,4] -> [4,1,2,3].
func TestMatMul1DScenarioS2(t *testing.T) {
	ctx := hetest.NewContext(4, 1, true)
	pk := hetest.NewPublicKey(ctx, he.KSFull)
	v := []int64{1, 2, 3, 4}
	got := runMatMul1D(t, ctx, pk, cyclicShiftMatrix(4, 1), v, false, 2)
	require.Equal(t, []int64{4, 1, 2, 3}, got)
}

// TestMatMul1DScenarioS3 is S3: D=8 native BSGS (g=KSGiantStepSize(8)>0
// since 8>BSGSThreshold), all-ones row-stochastic matrix sums every
// coordinate into every output slot.
func TestMatMul1DScenarioS3(t *testing.T) {
	ctx := hetest.NewContext(8, 1, true)
	pk := hetest.NewPublicKey(ctx, he.KSBSGS)
	v := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	got := runMatMul1D(t, ctx, pk, allOnesMatrix(8), v, false, 2)
	want := make([]int64, 8)
	for i := range want {
		want[i] = 36
	}
	require.Equal(t, want, got)
}

// TestMatMul1DScenarioS4 is S4: D=6 non-native, shift-by-2, the
// masked/duplicate compensation must reconstruct the exact plaintext
// cyclic shift despite the ambient rotation wrapping through a dummy
// slot.
func TestMatMul1DScenarioS4(t *testing.T) {
	ctx := hetest.NewContext(6, 1, false)
	pk := hetest.NewPublicKey(ctx, he.KSFull)
	v := []int64{1, 2, 3, 4, 5, 6}
	mat := cyclicShiftMatrix(6, 2)
	got := runMatMul1D(t, ctx, pk, mat, v, false, 2)
	want := hetest.ReferenceMatMul(mat, v)
	require.Equal(t, want, got)
	require.Equal(t, []int64{5, 6, 1, 2, 3, 4}, got)
}

// TestMatMul1DScenarioS5 is S5: minimal==true, D=3, arbitrary matrix
// matches the non-minimal path's result.
func TestMatMul1DScenarioS5(t *testing.T) {
	D := 3
	mat := [][]int64{{1, 2, 0}, {0, 3, 1}, {2, 0, 4}}
	v := []int64{5, 7, 11}
	want := hetest.ReferenceMatMul(mat, v)

	ctxMinimal := hetest.NewContext(D, 1, true)
	gotMinimal := runMatMul1D(t, ctxMinimal, nil, mat, v, true, 2)
	require.Equal(t, want, gotMinimal)

	ctxGeneral := hetest.NewContext(D, 1, true)
	pk := hetest.NewPublicKey(ctxGeneral, he.KSFull)
	gotGeneral := runMatMul1D(t, ctxGeneral, pk, mat, v, false, 2)
	require.Equal(t, want, gotGeneral)
}

// TestMatMul1DStrategyInvariance is property 3: the same matrix and
// vector produce identical results whether executed via the g==0
// general path, the g>0 BSGS path, or the minimal path.
func TestMatMul1DStrategyInvariance(t *testing.T) {
	D := 8
	v := []int64{2, 3, 5, 7, 11, 13, 17, 19}
	mat := cyclicShiftMatrix(D, 3)
	want := hetest.ReferenceMatMul(mat, v)

	t.Run("g=0/general", func(t *testing.T) {
		old := he.BSGSThreshold
		he.BSGSThreshold = D // forces g=0 for this D
		defer func() { he.BSGSThreshold = old }()

		ctx := hetest.NewContext(D, 1, true)
		pk := hetest.NewPublicKey(ctx, he.KSFull)
		got := runMatMul1D(t, ctx, pk, mat, v, false, 2)
		require.Equal(t, want, got)
	})

	t.Run("g>0/BSGS", func(t *testing.T) {
		ctx := hetest.NewContext(D, 1, true)
		pk := hetest.NewPublicKey(ctx, he.KSBSGS)
		got := runMatMul1D(t, ctx, pk, mat, v, false, 2)
		require.Equal(t, want, got)
	})

	t.Run("minimal", func(t *testing.T) {
		ctx := hetest.NewContext(D, 1, true)
		got := runMatMul1D(t, ctx, nil, mat, v, true, 2)
		require.Equal(t, want, got)
	})
}

// TestMatMul1DBadDimensionEquivalence is property 4: native and
// non-native contexts over the same logical matrix and vector produce
// the same decrypted result, despite the non-native path's rotation
// primitive not being a clean permutation.
func TestMatMul1DBadDimensionEquivalence(t *testing.T) {
	D := 6
	mat := cyclicShiftMatrix(D, 5)
	v := []int64{1, 2, 3, 4, 5, 6}
	want := hetest.ReferenceMatMul(mat, v)

	ctxNative := hetest.NewContext(D, 1, true)
	pkNative := hetest.NewPublicKey(ctxNative, he.KSFull)
	gotNative := runMatMul1D(t, ctxNative, pkNative, mat, v, false, 2)
	require.Equal(t, want, gotNative)

	ctxNonNative := hetest.NewContext(D, 1, false)
	pkNonNative := hetest.NewPublicKey(ctxNonNative, he.KSFull)
	gotNonNative := runMatMul1D(t, ctxNonNative, pkNonNative, mat, v, false, 2)
	require.Equal(t, want, gotNonNative)

	require.Equal(t, gotNative, gotNonNative)
}

// TestGenBabyStepsIdempotence is property 5: selecting baby step j
// from GenBabySteps must equal applying SmartAutomorph(GenToPow(dim,j))
// to an independent clone of the same base ciphertext.
func TestGenBabyStepsIdempotence(t *testing.T) {
	ctx := hetest.NewContext(8, 1, true)
	pk := hetest.NewPublicKey(ctx, he.KSFull)
	v := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	ctxt := hetest.NewCiphertext(ctx.D, ctx.OrdP(), ctx.Native(0), scalarValues(v), 0)

	g := 3
	babySteps, err := he.GenBabySteps(ctxt, 0, ctx, pk, g, true, 2)
	require.NoError(t, err)
	require.Len(t, babySteps, g)

	for j := 0; j < g; j++ {
		direct := ctxt.Clone()
		direct.SmartAutomorph(ctx.GenToPow(0, j))
		require.Equal(t, direct.(*hetest.Ciphertext).Decode(), babySteps[j].(*hetest.Ciphertext).Decode(), "baby step %d", j)
	}
}

// TestConstMultiplierCacheUpgradePreservesSemantics is property 6:
// upgrading a cache to Evaluated form must not change the
// decrypted result of applying it, only its internal representation.
func TestConstMultiplierCacheUpgradePreservesSemantics(t *testing.T) {
	ctx := hetest.NewContext(5, 1, true)
	enc := hetest.NewEncoder(ctx)
	mat := cyclicShiftMatrix(5, 2)
	desc := &hetest.DenseMatrix{Mat: mat, DimIdx: 0}

	cache, err := he.BuildMatMul1DCache[int64](ctx, desc, enc, 0)
	require.NoError(t, err)

	v := []int64{10, 20, 30, 40, 50}
	apply := func(c *he.ConstMultiplierCache) []int64 {
		ctxt := hetest.NewCiphertext(ctx.D, ctx.OrdP(), ctx.Native(0), scalarValues(v), 0)
		acc := ctxt.ZeroLike()
		sh := ctxt.Clone()
		for i := 0; i < ctx.D; i++ {
			if i > 0 {
				sh.SmartAutomorph(ctx.GenToPow(0, 1))
			}
			he.MulAdd(acc, c.Cache[i], sh)
		}
		return flatten(acc.(*hetest.Ciphertext).Decode())
	}

	before := apply(cache)
	require.NoError(t, cache.Upgrade(enc, 2))
	after := apply(cache)
	require.Equal(t, before, after)
	require.Equal(t, hetest.ReferenceMatMul(mat, v), before)
}

// TestMatMul1DZeroDiagonalSkip is property 7: a matrix whose only
// nonzero diagonal is index 0 (the identity) must leave every other
// cache entry nil, observable directly on the exported cache.
func TestMatMul1DZeroDiagonalSkip(t *testing.T) {
	D := 6
	ctx := hetest.NewContext(D, 1, true)
	enc := hetest.NewEncoder(ctx)
	desc := &hetest.DenseMatrix{Mat: identityMatrix(D), DimIdx: 0}

	cache, err := he.BuildMatMul1DCache[int64](ctx, desc, enc, 0)
	require.NoError(t, err)

	require.NotNil(t, cache.Cache[0])
	for i := 1; i < D; i++ {
		require.Nil(t, cache.Cache[i], "diagonal %d should have been skipped", i)
	}
}

// TestMatMul1DNoiseBound is property 8: running MatMul1D never panics
// on the key-switching noise bound, and the resulting ciphertext
// reports a finite, non-negative tracked noise estimate.
func TestMatMul1DNoiseBound(t *testing.T) {
	ctx := hetest.NewContext(8, 1, true)
	pk := hetest.NewPublicKey(ctx, he.KSBSGS)
	v := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	mat := cyclicShiftMatrix(8, 3)

	enc := hetest.NewEncoder(ctx)
	desc := &hetest.DenseMatrix{Mat: mat, DimIdx: 0}
	exec, err := he.NewMatMul1DExec[int64](desc, ctx, enc, false, 2)
	require.NoError(t, err)

	ctxt := hetest.NewCiphertext(ctx.D, ctx.OrdP(), ctx.Native(0), scalarValues(v), 0)
	result, err := exec.Mul(ctxt, pk)
	require.NoError(t, err)

	noise := result.(*hetest.Ciphertext).NoiseVar()
	require.GreaterOrEqual(t, noise, 0.0)
	require.False(t, math.IsNaN(noise) || math.IsInf(noise, 0), "noise variance must be finite")
}
