package he_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Pro7ech/hyperplan/he"
	"github.com/Pro7ech/hyperplan/he/hetest"
)

func TestBuildConstMultiplierZeroPolyIsNil(t *testing.T) {
	ctx := hetest.NewContext(4, 1, true)
	enc := hetest.NewEncoder(ctx)

	zero, err := enc.Encode([]int64{0, 0, 0, 0})
	require.NoError(t, err)
	require.Nil(t, he.BuildConstMultiplier[int64](zero, enc))

	nonzero, err := enc.Encode([]int64{0, 1, 0, 0})
	require.NoError(t, err)
	require.NotNil(t, he.BuildConstMultiplier[int64](nonzero, enc))
}

// TestMulAddDoesNotMutateOperand checks MulAdd's documented contract:
// x += a*b without mutating b.
func TestMulAddDoesNotMutateOperand(t *testing.T) {
	ctx := hetest.NewContext(4, 1, true)
	enc := hetest.NewEncoder(ctx)

	poly, err := enc.Encode([]int64{2, 2, 2, 2})
	require.NoError(t, err)
	cm := he.BuildConstMultiplier[int64](poly, enc)

	b := hetest.NewCiphertext(4, 1, true, [][]int64{{1}, {2}, {3}, {4}}, 0)
	x := b.ZeroLike()

	he.MulAdd(x, cm, b)

	require.Equal(t, [][]int64{{1}, {2}, {3}, {4}}, b.Decode(), "b must be unchanged")
	require.Equal(t, [][]int64{{2}, {4}, {6}, {8}}, x.(*hetest.Ciphertext).Decode())
}

// TestDestMulAddMutatesOperand checks DestMulAdd's documented contract:
// x += a*b, with b modified in place.
func TestDestMulAddMutatesOperand(t *testing.T) {
	ctx := hetest.NewContext(3, 1, true)
	enc := hetest.NewEncoder(ctx)

	poly, err := enc.Encode([]int64{3, 3, 3})
	require.NoError(t, err)
	cm := he.BuildConstMultiplier[int64](poly, enc)

	b := hetest.NewCiphertext(3, 1, true, [][]int64{{1}, {2}, {3}}, 0)
	x := b.ZeroLike()

	he.DestMulAdd(x, cm, b)

	require.Equal(t, [][]int64{{3}, {6}, {9}}, b.Decode(), "b must be mutated in place")
	require.Equal(t, b.Decode(), x.(*hetest.Ciphertext).Decode())
}

// TestNilConstMultiplierIsNoOp checks that MulAdd/DestMulAdd with a nil
// *ConstMultiplier (the all-zero-diagonal sentinel) leave x unchanged.
func TestNilConstMultiplierIsNoOp(t *testing.T) {
	b := hetest.NewCiphertext(3, 1, true, [][]int64{{1}, {2}, {3}}, 0)
	x := b.ZeroLike()

	var nilCM *he.ConstMultiplier
	he.MulAdd(x, nilCM, b)
	he.DestMulAdd(x, nilCM, b)

	require.Equal(t, [][]int64{{0}, {0}, {0}}, x.(*hetest.Ciphertext).Decode())
}
