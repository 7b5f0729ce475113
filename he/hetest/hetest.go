// Package hetest is a plaintext-only fake of the he package's
// collaborator contracts (context.go): a Context, PublicKey, Ciphertext
// and Encoder that operate directly on []int64 slot vectors instead of
// real ring elements. It exists so he's tests can drive MatMul1DExec and
// BlockMatMul1DExec end to end and check the decrypted result against a
// plaintext reference, including the non-native (masked/duplicate) path,
// without a real RLWE implementation.
//
// hetest models exactly one non-Frobenius hypercube dimension (index 0),
// of configurable order D and nativity. A non-native dimension is built
// over an ambient cyclic buffer of size D+1: the extra slot is a dummy
// that a clean size-D rotation cannot step over without the library's
// mask/duplicate compensation, which is the textbook "bad dimension"
// construction (spec.md §4.4) and is genuinely exercised here rather
// than special-cased away. The Frobenius axis (dim == -1) is modeled as
// a cyclic shift of a per-slot length-d register and is always native.
package hetest

import (
	"fmt"
	"math"

	"github.com/Pro7ech/hyperplan/he"
)

const frobeniusBase = 1 << 30

// rotateRow returns data rotated by i (out[p] = data[(p-i) mod D] once
// reassembled logically) along an ambient buffer of size M, applying
// the bad-dimension cross-fade when native is false (spec.md §4.4): the
// single ambient step rho(k)[p] = data[(p-k) mod M] only coincides with
// the desired clean D-cycle rotation when p >= i (no wraparound through
// the dummy slot at position D); for p < i the correct value instead
// sits at rho(i-D), i.e. data[(p-i+D) mod M] — the compensation term
// the mask/duplicate split exists to select. Every row of the
// block-vector axis is rotated independently with the same amount.
func rotateRow(data [][]int64, i, D, M int, native bool) [][]int64 {
	blockD := len(data[0])
	out := make([][]int64, M)
	for p := range out {
		out[p] = make([]int64, blockD)
	}
	i = mcMod(i, D)
	for p := 0; p < D; p++ {
		var src int
		switch {
		case native:
			src = mcMod(p-i, D)
		case p >= i:
			src = p - i
		default:
			src = mcMod(p-i+D, M)
		}
		copy(out[p], data[src])
	}
	return out
}

// rotateFrobeniusAxis cyclically shifts every slot's length-blockD block
// register by k: out[j] = row[(j+k) % blockD]. Shared by automorphGrid so
// Digit, CiphertextPart, and Ciphertext all hoist along the Frobenius
// axis identically.
func rotateFrobeniusAxis(data [][]int64, k int) [][]int64 {
	blockD := len(data[0])
	k = mcMod(k, blockD)
	out := make([][]int64, len(data))
	for i, row := range data {
		shifted := make([]int64, blockD)
		for j := range shifted {
			shifted[j] = row[(j+k)%blockD]
		}
		out[i] = shifted
	}
	return out
}

// automorphGrid dispatches a group element to either a real-dimension
// rotation (rotateRow) or a Frobenius-axis rotation (rotateFrobeniusAxis),
// mirroring the encoding Context.GenToPow produces and that
// Ciphertext.SmartAutomorph, Digit.Automorph, and CiphertextPart.Automorph
// all share: frobeniusBase+k is a Frobenius shift by k, and any smaller
// element e is a real-dimension rotation by e-1, so that element 1 is the
// identity.
func automorphGrid(data [][]int64, groupElement, D, M int, native bool) [][]int64 {
	if groupElement >= frobeniusBase {
		return rotateFrobeniusAxis(data, groupElement-frobeniusBase)
	}
	return rotateRow(data, groupElement-1, D, M, native)
}

func mcMod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}

func cloneGrid(data [][]int64) [][]int64 {
	out := make([][]int64, len(data))
	for i, row := range data {
		out[i] = append([]int64(nil), row...)
	}
	return out
}

func zeroGrid(M, blockD int) [][]int64 {
	out := make([][]int64, M)
	for i := range out {
		out[i] = make([]int64, blockD)
	}
	return out
}

// Context is a fake he.Context over a single real dimension (index 0)
// of order D, plus a Frobenius axis of order blockD.
type Context struct {
	D       int
	blockD  int
	native  bool
	phiM    int
	slots   int
	stdev   float64
	special []int
	digits  [][]int
}

// NewContext builds a fake Context for a dimension of order D (native
// controls whether rotation along it is a clean permutation) and a
// Frobenius axis of order blockD (blockD == 1 for scalar-only tests).
// The key-switching noise parameters are fixed to values that
// comfortably satisfy computeKSNoise's bound for the small D values
// these tests use.
func NewContext(D, blockD int, native bool) *Context {
	return &Context{
		D: D, blockD: blockD, native: native,
		phiM: 16, slots: D, stdev: 3.2,
		special: []int{2},
		digits:  [][]int{{2}},
	}
}

func (c *Context) PhiM() int  { return c.phiM }
func (c *Context) Slots() int { return c.slots }
func (c *Context) NumGens() int { return 1 }
func (c *Context) OrdP() int    { return c.blockD }

func (c *Context) OrderOf(dim int) int {
	if dim == c.NumGens() {
		return 1
	}
	return c.D
}

func (c *Context) Native(dim int) bool {
	if dim == c.NumGens() {
		return true
	}
	return c.native
}

// GenToPow encodes a rotation by k along the real dimension as the group
// element 1+(k mod D), so that generator^0 is the identity element 1 that
// BasicAutomorphPrecon.Automorph short-circuits on.
func (c *Context) GenToPow(dim, k int) int {
	switch {
	case dim == -1:
		return frobeniusBase + mcMod(k, c.blockD)
	case dim == c.NumGens():
		return 1
	default:
		return 1 + mcMod(k, c.D)
	}
}

// Coordinate returns slot j's position along the single real dimension:
// since hetest models only one non-Frobenius dimension, the hypercube
// coordinate is the slot index itself.
func (c *Context) Coordinate(dim, j int) int {
	if dim == c.NumGens() {
		return 0
	}
	return j
}

func (c *Context) BreakIndexByDim(j, dim int) (blockIdx, innerIdx int) {
	if dim == c.NumGens() {
		return j, 0
	}
	return 0, j
}

func (c *Context) SpecialPrimes() []int { return c.special }
func (c *Context) Digits() [][]int      { return c.digits }
func (c *Context) Stdev() float64       { return c.stdev }

func (c *Context) LogOfProduct(primes []int) float64 {
	var sum float64
	for _, p := range primes {
		sum += math.Log(float64(p))
	}
	return sum
}

// KeySwitchMatrix is a fake he.KeySwitchMatrix: there is no real matrix
// to hold, only the level it was generated against.
type KeySwitchMatrix struct {
	levelP int
}

func (w *KeySwitchMatrix) LevelP() int { return w.levelP }

// PublicKey is a fake he.PublicKey: every key-switching matrix is
// considered present (HaveKeySwitchMatrix always true), and the
// hoisting strategy per dimension is whatever the test configured.
type PublicKey struct {
	ctx        *Context
	strategies map[int]he.KSStrategy
	pSpace     int64
	keyWeight  int64
}

// NewPublicKey builds a fake PublicKey over ctx, declaring strategy for
// dimension 0.
func NewPublicKey(ctx *Context, dim0Strategy he.KSStrategy) *PublicKey {
	return &PublicKey{
		ctx:        ctx,
		strategies: map[int]he.KSStrategy{0: dim0Strategy},
		pSpace:     2,
		keyWeight:  64,
	}
}

// SetStrategy declares the key-switching strategy for an additional
// dimension (e.g. -1, the Frobenius axis, for block matrix tests).
func (pk *PublicKey) SetStrategy(dim int, s he.KSStrategy) {
	pk.strategies[dim] = s
}

func (pk *PublicKey) KSStrategy(dim int) he.KSStrategy {
	if s, ok := pk.strategies[dim]; ok {
		return s
	}
	return he.KSUnknown
}

func (pk *PublicKey) HaveKeySwitchMatrix(powerFrom, powerTo, keyIDFrom, keyIDTo int) bool {
	return true
}

func (pk *PublicKey) KeySwitchMatrix(powerFrom, powerTo, keyIDFrom, keyIDTo int) he.KeySwitchMatrix {
	return &KeySwitchMatrix{levelP: len(pk.ctx.special)}
}

func (pk *PublicKey) KeySwitchListPtxtSpace() int64   { return pk.pSpace }
func (pk *PublicKey) SecretKeyWeight(keyID int) int64 { return pk.keyWeight }

// Digit is a fake he.Digit: one component of a decomposed
// CiphertextPart. Only digits[0] produced by BreakIntoDigits ever
// carries real data; the rest are zero, so summing every digit's
// (independently rotated) contribution back together reconstructs the
// original value exactly once.
type Digit struct {
	data   [][]int64
	D, M   int
	native bool
}

func (d *Digit) Automorph(k int) {
	d.data = automorphGrid(d.data, k, d.D, d.M, d.native)
}

func (d *Digit) Clone() he.Digit {
	return &Digit{data: cloneGrid(d.data), D: d.D, M: d.M, native: d.native}
}

// CiphertextPart is a fake he.CiphertextPart.
type CiphertextPart struct {
	data      [][]int64
	D, M      int
	native    bool
	isOne     bool
	isBaseKey int // -1 means "not a base part"
}

func (p *CiphertextPart) SkHandleIsOne() bool           { return p.isOne }
func (p *CiphertextPart) SkHandleIsBase(keyID int) bool { return p.isBaseKey == keyID }

func (p *CiphertextPart) Automorph(k int) {
	p.data = automorphGrid(p.data, k, p.D, p.M, p.native)
}

func (p *CiphertextPart) AddPrimesAndScale(primes []int) {}

func (p *CiphertextPart) BreakIntoDigits(nDigits int) []he.Digit {
	out := make([]he.Digit, nDigits)
	for i := range out {
		var data [][]int64
		if i == 0 {
			data = cloneGrid(p.data)
		} else {
			data = zeroGrid(p.M, len(p.data[0]))
		}
		out[i] = &Digit{data: data, D: p.D, M: p.M, native: p.native}
	}
	return out
}

func (p *CiphertextPart) Clone() he.CiphertextPart {
	return &CiphertextPart{
		data: cloneGrid(p.data), D: p.D, M: p.M, native: p.native,
		isOne: p.isOne, isBaseKey: p.isBaseKey,
	}
}

// poly is the fake he.Encoder's opaque constant representation: a
// length-D vector of per-position scalars (one per hypercube slot of
// the real dimension), plus the bookkeeping flag tracking Poly vs
// Evaluated state for BuildConstMultiplier's cache upgrade path.
type poly struct {
	vals      []int64
	evaluated bool
}

// Ciphertext is a fake he.Ciphertext: an ambient [M][blockD]int64 grid,
// where the first D ambient rows are the logical slot values (one
// length-blockD block vector per slot) and, for a non-native dimension,
// the extra row at index D is the unused "bad dimension" dummy.
type Ciphertext struct {
	D, M, blockD int
	native       bool
	data         [][]int64
	keyID        int
	noiseVar     float64
}

// NewCiphertext builds a Ciphertext over D real slots (each holding a
// length-blockD block vector; pass blockD == 1 for scalar matrices)
// from its logical values.
func NewCiphertext(D, blockD int, native bool, values [][]int64, keyID int) *Ciphertext {
	M := D
	if !native {
		M = D + 1
	}
	data := zeroGrid(M, blockD)
	for i := 0; i < D; i++ {
		copy(data[i], values[i])
	}
	return &Ciphertext{D: D, M: M, blockD: blockD, native: native, data: data, keyID: keyID}
}

// Decode returns the logical [0,D) x [0,blockD) slot grid, stripping the
// non-native dummy row.
func (c *Ciphertext) Decode() [][]int64 {
	out := make([][]int64, c.D)
	for i := range out {
		out[i] = append([]int64(nil), c.data[i]...)
	}
	return out
}

func (c *Ciphertext) Clone() he.Ciphertext {
	return &Ciphertext{
		D: c.D, M: c.M, blockD: c.blockD, native: c.native,
		data: cloneGrid(c.data), keyID: c.keyID, noiseVar: c.noiseVar,
	}
}

func (c *Ciphertext) ZeroLike() he.Ciphertext {
	return &Ciphertext{
		D: c.D, M: c.M, blockD: c.blockD, native: c.native,
		data: zeroGrid(c.M, c.blockD), keyID: c.keyID,
	}
}

func (c *Ciphertext) Add(other he.Ciphertext) {
	o := other.(*Ciphertext)
	for i := range c.data {
		for j := range c.data[i] {
			c.data[i][j] += o.data[i][j]
		}
	}
	c.noiseVar += o.noiseVar
}

// CleanUp is a no-op: the fake ciphertext has no special primes or
// extra parts to collapse.
func (c *Ciphertext) CleanUp() {}

func (c *Ciphertext) SmartAutomorph(groupElement int) {
	c.data = automorphGrid(c.data, groupElement, c.D, c.M, c.native)
}

func (c *Ciphertext) MultiplyByConstant(data any) {
	p := data.(*poly)
	for i := 0; i < c.D; i++ {
		s := p.vals[i]
		for j := range c.data[i] {
			c.data[i][j] *= s
		}
	}
}

func (c *Ciphertext) Parts() []he.CiphertextPart {
	part0 := &CiphertextPart{
		data: zeroGrid(c.M, c.blockD), D: c.D, M: c.M, native: c.native,
		isOne: true, isBaseKey: -1,
	}
	part1 := &CiphertextPart{
		data: cloneGrid(c.data), D: c.D, M: c.M, native: c.native,
		isOne: false, isBaseKey: c.keyID,
	}
	return []he.CiphertextPart{part0, part1}
}

func (c *Ciphertext) AddPart(part he.CiphertextPart, matchPrimeSet bool) {
	p := part.(*CiphertextPart)
	for i := range c.data {
		for j := range c.data[i] {
			c.data[i][j] += p.data[i][j]
		}
	}
}

func (c *Ciphertext) KeySwitchDigits(w he.KeySwitchMatrix, digits []he.Digit) {
	for _, hd := range digits {
		d := hd.(*Digit)
		for i := range c.data {
			for j := range c.data[i] {
				c.data[i][j] += d.data[i][j]
			}
		}
	}
	c.noiseVar += 1
}

func (c *Ciphertext) PrimeSet() []int        { return []int{3} } // disjoint from Context.special
func (c *Ciphertext) KeyID() int             { return c.keyID }
func (c *Ciphertext) NoiseVar() float64      { return c.noiseVar }
func (c *Ciphertext) SetNoiseVar(v float64)  { c.noiseVar = v }

// Encoder is a fake he.Encoder[int64]. Slot vectors are encoded
// verbatim with no modular reduction; plaintext automorphisms along
// the real dimension reuse rotateRow, and Frobenius automorphisms
// cyclically shift the per-slot block register — matching, by
// construction, the rotations Ciphertext.SmartAutomorph applies.
//
// BuildLinPolyCoeffs is the identity map: the fake treats a block
// diagonal entry's linearizing column directly as the coefficients of
// a circulant operator over the per-slot block register (see
// DESIGN.md). This sidesteps the real GF(p^d) Frobenius-linearization
// algebra, which is an Encoder concern entirely outside this package's
// scope, while still giving BlockMatMul1DExec a genuine, independently
// computable linear map to check its orchestration against.
type Encoder struct {
	ctx *Context
}

func NewEncoder(ctx *Context) *Encoder { return &Encoder{ctx: ctx} }

func (e *Encoder) Encode(vec []int64) (interface{}, error) {
	if len(vec) != e.ctx.slots {
		return nil, fmt.Errorf("cannot encode: vector has %d entries, want %d", len(vec), e.ctx.slots)
	}
	return &poly{vals: append([]int64(nil), vec...)}, nil
}

func (e *Encoder) Automorph(p interface{}, dim, amt int) (interface{}, error) {
	pp := p.(*poly)
	if dim == -1 {
		// Frobenius never reaches plaintext Automorph in this package:
		// BuildConstMultiplierRotated is only ever called along a
		// MatrixDescriptor's own dim, never -1.
		return nil, fmt.Errorf("cannot plaintext-automorph along Frobenius")
	}
	D, M, native := e.ctx.D, e.ctx.D, e.ctx.native
	if !native {
		M = D + 1
	}
	grid := make([][]int64, M)
	for i := 0; i < D; i++ {
		grid[i] = []int64{pp.vals[i]}
	}
	for i := D; i < M; i++ {
		grid[i] = []int64{0}
	}
	rotated := rotateRow(grid, amt, D, M, native)
	out := make([]int64, D)
	for i := 0; i < D; i++ {
		out[i] = rotated[i][0]
	}
	return &poly{vals: out, evaluated: pp.evaluated}, nil
}

func (e *Encoder) IsZeroPoly(p interface{}) bool {
	pp := p.(*poly)
	for _, v := range pp.vals {
		if v != 0 {
			return false
		}
	}
	return true
}

func (e *Encoder) ToEvaluated(p interface{}) (interface{}, error) {
	pp := p.(*poly)
	if pp.evaluated {
		return nil, nil
	}
	return &poly{vals: append([]int64(nil), pp.vals...), evaluated: true}, nil
}

func (e *Encoder) BuildLinPolyCoeffs(entries []interface{}) ([]interface{}, error) {
	out := make([]interface{}, len(entries))
	copy(out, entries)
	return out, nil
}

// Mask returns the i-th bad-dimension mask: 1 at slots pos where
// pos >= i (the direct, non-wrapping rotation applies), 0 elsewhere,
// matching the cross-fade rotateRow implements.
func (e *Encoder) Mask(dim, i int) (interface{}, error) {
	D := e.ctx.D
	i = mcMod(i, D)
	vals := make([]int64, D)
	for pos := 0; pos < D; pos++ {
		if pos >= i {
			vals[pos] = 1
		}
	}
	return &poly{vals: vals}, nil
}

func (e *Encoder) Split(p, mask interface{}) (interface{}, interface{}, error) {
	pp, mm := p.(*poly), mask.(*poly)
	masked := make([]int64, len(pp.vals))
	remainder := make([]int64, len(pp.vals))
	for i := range pp.vals {
		masked[i] = pp.vals[i] * mm.vals[i]
		remainder[i] = pp.vals[i] - masked[i]
	}
	return &poly{vals: masked, evaluated: pp.evaluated}, &poly{vals: remainder, evaluated: pp.evaluated}, nil
}

// DenseMatrix is a fake he.MatrixDescriptor[int64]: a dense D×D matrix
// applied along a single dimension, with no multiple-transforms support
// (every slot shares the one matrix). Mat is stored conventionally as
// Mat[row][col]; Get(i,j) returns Mat[j][i] — the transposed read the
// diagonal extractor's (i,j) argument order expects so that the
// resulting transform is exactly y = Mat·x (spec.md §8 property 1). A
// zero entry is indistinguishable from an absent one, which is a
// deliberate simplification: this package's diagonal extractor only
// ever consults the "empty" flag, never a separate zero-value test
// (see DESIGN.md).
type DenseMatrix struct {
	Mat    [][]int64
	DimIdx int
}

func (m *DenseMatrix) Dim() int                 { return m.DimIdx }
func (m *DenseMatrix) MultipleTransforms() bool { return false }
func (m *DenseMatrix) Get(i, j, blockIdx int) (int64, bool) {
	v := m.Mat[j][i]
	return v, v == 0
}

// ReferenceMatMul computes y = Mat·x directly, independently of
// diagonal.go/matmul1d.go, as ground truth for spec.md §8 property 1:
// y[p] = sum_col Mat[p][col]*x[col]. Used against both the native and
// non-native (masked/duplicate) paths, since the bad-dimension
// compensation exists precisely to reconstruct this same clean-rotation
// sum despite the underlying ambient rotation not being a permutation.
func ReferenceMatMul(mat [][]int64, x []int64) []int64 {
	D := len(x)
	y := make([]int64, D)
	for p := 0; p < D; p++ {
		for col := 0; col < D; col++ {
			y[p] += mat[p][col] * x[col]
		}
	}
	return y
}

// BlockMatrix is a fake he.BlockMatrixDescriptor[int64]: each (i,j)
// entry is a length-d circulant-generating column (spec.md §4.4's
// "linearized-polynomial matrix, determined by one column" convention,
// combined with hetest's Encoder.BuildLinPolyCoeffs identity — see
// DESIGN.md). Entries[i][j][r] is the entry's r-th circulant
// coefficient; Get wraps it into the [d][1] shape blockColumn expects.
type BlockMatrix struct {
	Entries [][][]int64
	DimIdx  int
	Dsize   int
}

func (m *BlockMatrix) Dim() int                 { return m.DimIdx }
func (m *BlockMatrix) D() int                   { return m.Dsize }
func (m *BlockMatrix) MultipleTransforms() bool { return false }

// Get returns the transposed entry Entries[j][i] (mirroring DenseMatrix.Get,
// so blockColumn() feeds ReferenceBlockMatMul's Entries[p][col] convention).
func (m *BlockMatrix) Get(i, j, blockIdx int) ([][]int64, bool) {
	col := m.Entries[j][i]
	empty := true
	for _, v := range col {
		if v != 0 {
			empty = false
			break
		}
	}
	entry := make([][]int64, m.Dsize)
	for r := range entry {
		entry[r] = []int64{col[r]}
	}
	return entry, empty
}

// ReferenceBlockMatMul computes, independently of
// diagonal.go/blockmatmul1d.go, the linear map BlockMatMul1DExec
// realizes for a BlockMatrix of dimension order D and block size d:
//
//	y[p][c] = sum_col sum_r mat[p][col][r] * x[col][(c+r)%d]
//
// i.e. a genuine block matrix multiply where block (p,col) is the
// circulant matrix generated by column mat[p][col]; matching the sum
// the +1/-1/minimal strategies all reduce to (see DESIGN.md for the
// derivation), used as ground truth across all three.
func ReferenceBlockMatMul(mat [][][]int64, x [][]int64, D, d int) [][]int64 {
	y := make([][]int64, D)
	for p := range y {
		y[p] = make([]int64, d)
	}
	for p := 0; p < D; p++ {
		for c := 0; c < d; c++ {
			var sum int64
			for col := 0; col < D; col++ {
				entry := mat[p][col]
				for r := 0; r < d; r++ {
					sum += entry[r] * x[col][(c+r)%d]
				}
			}
			y[p][c] = sum
		}
	}
	return y
}
