package hetest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReferenceMatMul checks the ground-truth scalar matmul directly
// against a hand-computed small case: a cyclic right-shift-by-one
// matrix applied to [1,2,3,4] must produce [4,1,2,3].
func TestReferenceMatMul(t *testing.T) {
	D := 4
	mat := make([][]int64, D)
	for i := range mat {
		mat[i] = make([]int64, D)
		mat[i][mcMod(i-1, D)] = 1
	}
	got := ReferenceMatMul(mat, []int64{1, 2, 3, 4})
	require.Equal(t, []int64{4, 1, 2, 3}, got)
}

// TestReferenceMatMulAllOnes checks the row-stochastic all-ones matrix
// sums every coordinate into every output slot.
func TestReferenceMatMulAllOnes(t *testing.T) {
	D := 5
	mat := make([][]int64, D)
	for i := range mat {
		mat[i] = make([]int64, D)
		for j := range mat[i] {
			mat[i][j] = 1
		}
	}
	x := []int64{1, 2, 3, 4, 5}
	got := ReferenceMatMul(mat, x)
	want := make([]int64, D)
	for i := range want {
		want[i] = 15
	}
	require.Equal(t, want, got)
}

// TestReferenceBlockMatMulIdentity checks that a block-identity matrix
// (each diagonal block the dxd identity, off-diagonal blocks zero)
// reproduces x unchanged.
func TestReferenceBlockMatMulIdentity(t *testing.T) {
	D, d := 3, 2
	mat := make([][][]int64, D)
	for p := range mat {
		mat[p] = make([][]int64, D)
		for col := range mat[p] {
			mat[p][col] = make([]int64, d)
		}
		mat[p][p][0] = 1 // r=0 coefficient 1, rest 0 -> identity circulant
	}
	x := [][]int64{{1, 2}, {3, 4}, {5, 6}}
	got := ReferenceBlockMatMul(mat, x, D, d)
	require.Equal(t, x, got)
}

// TestRotateRowNative checks the right-shift convention directly:
// rotating by i moves data[(p-i) mod D] into position p.
func TestRotateRowNative(t *testing.T) {
	D, M := 4, 4
	data := [][]int64{{0}, {1}, {2}, {3}}
	out := rotateRow(data, 1, D, M, true)
	want := [][]int64{{3}, {0}, {1}, {2}}
	require.Equal(t, want, out)
}

// TestRotateRowNonNative exercises the bad-dimension cross-fade: with
// an ambient buffer one slot larger than D, rotating by i must still
// recover the same logical D-cycle once the dummy slot's wraparound is
// accounted for by the direct/compensation split.
func TestRotateRowNonNative(t *testing.T) {
	D, M := 6, 7
	data := make([][]int64, M)
	for i := range data {
		data[i] = []int64{int64(i)}
	}
	i := 4
	out := rotateRow(data, i, D, M, false)
	for p := 0; p < D; p++ {
		var want int64
		if p >= i {
			want = int64(p - i)
		} else {
			want = int64(p - i + D)
		}
		require.Equal(t, want, out[p][0], "position %d", p)
	}
}

// TestAutomorphGridFrobenius checks the Frobenius-axis dispatch shifts
// every slot's block register identically to rotateFrobeniusAxis.
func TestAutomorphGridFrobenius(t *testing.T) {
	data := [][]int64{{1, 2, 3}, {4, 5, 6}}
	out := automorphGrid(data, frobeniusBase+1, 2, 2, true)
	require.Equal(t, [][]int64{{2, 3, 1}, {5, 6, 4}}, out)
}

// TestContextAndCiphertextRoundTrip checks that a Ciphertext built from
// values decodes back to those same values unchanged.
func TestContextAndCiphertextRoundTrip(t *testing.T) {
	ctx := NewContext(4, 1, true)
	values := [][]int64{{1}, {2}, {3}, {4}}
	ct := NewCiphertext(ctx.D, ctx.blockD, ctx.native, values, 0)
	require.Equal(t, values, ct.Decode())
}
