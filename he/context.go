package he

// BSGSThreshold is the dimension size at or below which MatMul1DExec
// skips the baby-step/giant-step decomposition and falls back to a
// single loop over the dimension (spec.md §6: "FHE_BSGS_MUL_THRESH").
// BlockMatMul1DExec does not consult it.
// Left as a package variable rather than a compile-time constant
// because its optimum is empirically tuned, not derived (spec.md §9).
var BSGSThreshold = 3

// ParBufMax bounds the number of ciphertexts buffered at once by the
// BlockMatMul1DExec buffered parallel hoist (spec.md §4.6).
var ParBufMax = 50

// Context exposes the structural facts about the hypercube that the
// planner needs: dimension sizes and nativity, the generator group,
// the coordinate map, and the numeric inputs to the key-switching
// noise formula. Context is read-only from the planner's perspective.
type Context interface {
	// PhiM returns phi(m), the ring degree.
	PhiM() int

	// Slots returns the total number of plaintext slots (ea.size() in
	// the hypercube literature): the length of every per-slot vector
	// the diagonal extractor assembles.
	Slots() int

	// NumGens returns the number of hypercube generators. A dimension
	// equal to NumGens() is the dummy dimension of order 1.
	NumGens() int

	// OrdP returns the order of the Frobenius automorphism (dim == -1).
	OrdP() int

	// OrderOf returns the size D of dimension dim. OrderOf(NumGens()) == 1.
	OrderOf(dim int) int

	// Native reports whether rotation along dim is a clean permutation
	// of slot indices. Native(NumGens()) is always true.
	Native(dim int) bool

	// GenToPow returns the hypercube generator for dim raised to the k-th
	// power, i.e. the Galois/automorphism group element implementing a
	// rotation by k along dim. dim == -1 selects the Frobenius generator.
	GenToPow(dim, k int) int

	// Coordinate returns the coordinate of slot j along dim.
	Coordinate(dim, j int) int

	// BreakIndexByDim splits slot index j into the index of the block of
	// slots it belongs to (blockIdx) and its coordinate within dim
	// (innerIdx), for the multiple-transforms case (spec.md §4.4).
	BreakIndexByDim(j, dim int) (blockIdx, innerIdx int)

	// SpecialPrimes returns the auxiliary key-switching moduli.
	SpecialPrimes() []int

	// Digits returns the key-switching digit groups, in order.
	Digits() [][]int

	// Stdev returns the noise distribution's standard deviation.
	Stdev() float64

	// LogOfProduct returns the natural log of the product of the given primes.
	LogOfProduct(primes []int) float64
}

// KSStrategy is the key-switching hoisting strategy a PublicKey declares
// for a given dimension (spec.md §4.3).
type KSStrategy int

const (
	KSUnknown KSStrategy = iota
	KSFull
	KSBSGS
)

// PublicKey exposes the key-switching matrices and strategy declarations
// the planner and the automorphism preconditioners need.
type PublicKey interface {
	// KSStrategy returns the hoisting strategy declared for dim.
	KSStrategy(dim int) KSStrategy

	// HaveKeySwitchMatrix reports whether a key-switching matrix from
	// powerFrom to powerTo is available under the given key ids.
	HaveKeySwitchMatrix(powerFrom, powerTo, keyIDFrom, keyIDTo int) bool

	// KeySwitchMatrix returns the key-switching matrix from powerFrom to
	// powerTo. Callers must check HaveKeySwitchMatrix first; a missing
	// matrix is a precondition violation (spec.md §7).
	KeySwitchMatrix(powerFrom, powerTo, keyIDFrom, keyIDTo int) KeySwitchMatrix

	// KeySwitchListPtxtSpace returns the plaintext space of the first
	// registered key-switching matrix, used by the KS-noise formula.
	KeySwitchListPtxtSpace() int64

	// SecretKeyWeight returns the Hamming weight of the named secret key,
	// used by the KS-noise sanity bound.
	SecretKeyWeight(keyID int) int64
}

// KeySwitchMatrix is an opaque handle to a key-switching matrix W(k1,k2).
type KeySwitchMatrix interface {
	// LevelP returns the number of special primes this matrix was
	// generated against.
	LevelP() int
}

// Digit is one double-CRT digit produced by decomposing a ciphertext
// part for key-switching (spec.md §4.2).
type Digit interface {
	// Automorph rotates the digit in place by the automorphism k.
	Automorph(k int)
	// Clone returns an independent copy.
	Clone() Digit
}

// CiphertextPart is one of the (exactly two, after CleanUp) components
// of a Ciphertext.
type CiphertextPart interface {
	// SkHandleIsOne reports whether this part is the constant
	// (not-under-a-secret-key) component.
	SkHandleIsOne() bool
	// SkHandleIsBase reports whether this part is carried under the
	// named secret key in its primitive (non-key-switched) form.
	SkHandleIsBase(keyID int) bool
	// Automorph rotates the part in place by the automorphism k.
	Automorph(k int)
	// AddPrimesAndScale extends the part's prime set with primes,
	// scaling the represented value accordingly.
	AddPrimesAndScale(primes []int)
	// BreakIntoDigits decomposes the part into nDigits double-CRT digits.
	BreakIntoDigits(nDigits int) []Digit
	// Clone returns an independent copy.
	Clone() CiphertextPart
}

// Ciphertext is the external ciphertext type. All cryptographic work
// (rotation, key-switching, constant multiplication) is delegated to it;
// this package only orchestrates which operations to call and in what
// order, and accumulates the results by addition.
type Ciphertext interface {
	// Clone returns an independent copy.
	Clone() Ciphertext
	// ZeroLike returns a zero ciphertext with the same metadata as the receiver.
	ZeroLike() Ciphertext
	// Add adds other into the receiver in place.
	Add(other Ciphertext)
	// CleanUp reduces the ciphertext to its minimal (two-part, special-prime-free) representation.
	CleanUp()
	// SmartAutomorph applies the automorphism for the given group element in place.
	SmartAutomorph(groupElement int)
	// MultiplyByConstant multiplies the receiver in place by a plaintext
	// constant in either Poly or Evaluated form (spec.md §3).
	MultiplyByConstant(data any)
	// Parts exposes the ciphertext's components (exactly two after CleanUp).
	Parts() []CiphertextPart
	// AddPart adds a (possibly foreign-prime-set) part into the receiver.
	// When matchPrimeSet is true the part's prime set is extended to
	// match the receiver's before being added.
	AddPart(part CiphertextPart, matchPrimeSet bool)
	// KeySwitchDigits key-switches digits under w and adds the result
	// into the receiver in place.
	KeySwitchDigits(w KeySwitchMatrix, digits []Digit)
	// PrimeSet returns the ciphertext's current prime set.
	PrimeSet() []int
	// KeyID returns the id of the secret key the ciphertext is encrypted under.
	KeyID() int
	// NoiseVar returns the tracked noise variance estimate.
	NoiseVar() float64
	// SetNoiseVar overwrites the tracked noise variance estimate.
	SetNoiseVar(v float64)
}

// Encoder turns plaintext slot vectors into the opaque polynomial
// representation ConstMultiplier stores, and provides the plaintext-side
// operations the diagonal extractor needs: automorphisms on encoded
// constants, zero/upgrade tests, block linearization, and the bad-dimension
// mask table.
type Encoder[E any] interface {
	// Encode packs vec, one value per slot, into a Poly-form constant.
	Encode(vec []E) (poly any, err error)
	// Automorph applies a plaintext automorphism by amt along dim to poly,
	// used to pre-rotate a diagonal's constant for BSGS fusion (spec.md §4.1).
	Automorph(poly any, dim, amt int) (any, error)
	// IsZeroPoly reports whether poly encodes the all-zero constant.
	IsZeroPoly(poly any) bool
	// ToEvaluated upgrades a Poly-form constant to Evaluated (CRT/NTT)
	// form. Returns a nil evaluated value (with a nil error) if poly is
	// already evaluated and no upgrade is needed (spec.md §4.1).
	ToEvaluated(poly any) (evaluated any, err error)
	// BuildLinPolyCoeffs takes the d already slot-packed plaintexts L
	// characterizing a block diagonal's linearized-polynomial matrix
	// (one per base-ring coordinate) and returns the d plaintexts C
	// such that, for every slot, sum_r C[r]*Frobenius^r(x) implements
	// that slot's d×d linear map (spec.md §4.4, block case; §6
	// "buildLinPolyCoeffs(out, entry_polys)").
	BuildLinPolyCoeffs(entries []any) ([]any, error)
	// Mask returns the i-th bad-dimension mask plaintext for dim: the
	// library-provided d_i such that r^i = d_i*rho^i + (1-d_i)*rho^(i-D).
	Mask(dim, i int) (any, error)
	// Split returns poly*mask and poly-poly*mask: the masked first-i-slots-
	// zeroed half and its complement, used by the bad-dimension diagonal
	// split (spec.md §4.4).
	Split(poly, mask any) (masked, remainder any, err error)
}

// MatrixDescriptor describes a scalar DxD linear transformation along
// one hypercube dimension (spec.md §4.4, §6).
type MatrixDescriptor[E any] interface {
	// Dim returns the hypercube dimension this matrix acts along.
	Dim() int
	// MultipleTransforms reports whether distinct blocks of slots are
	// subject to distinct matrices (spec.md §4.4).
	MultipleTransforms() bool
	// Get returns the (i,j) entry of the matrix applied to blockIdx's
	// transform, and whether the entry is empty (treated as zero).
	Get(i, j, blockIdx int) (entry E, empty bool)
}

// BlockMatrixDescriptor describes a block DxD linear transformation,
// each of whose entries is itself a dxd matrix over the base ring
// (spec.md §4.6).
type BlockMatrixDescriptor[E any] interface {
	// Dim returns the hypercube dimension this matrix acts along.
	Dim() int
	// D returns the block size d.
	D() int
	// MultipleTransforms reports whether distinct blocks of slots are
	// subject to distinct matrices.
	MultipleTransforms() bool
	// Get returns the dxd matrix entry at (i,j) of blockIdx's transform,
	// and whether the entry is empty (treated as zero).
	Get(i, j, blockIdx int) (entry [][]E, empty bool)
}

// KSGiantStepSize returns the baby-step/giant-step giant-step size used
// to factor a dimension of order D into g baby steps and ceil(D/g)
// giant steps, minimizing the total rotation count (spec.md §4.3, §6).
// Mirrors the teacher's own BSGS-ratio search (he/linear_transformation.go,
// OptimalLinearTransformationGiantStep) adapted to a single dimension D
// rather than a diagonal index set.
func KSGiantStepSize(D int) int {
	if D <= 1 {
		return 1
	}
	g := 1
	for cand := 1; cand*cand <= D; cand++ {
		g = cand
	}
	// g*g <= D < (g+1)*(g+1); prefer the split minimizing g + ceil(D/g).
	best := g
	bestCost := best + divc(D, best)
	for _, cand := range []int{g, g + 1} {
		if cand < 1 {
			continue
		}
		cost := cand + divc(D, cand)
		if cost < bestCost {
			bestCost = cost
			best = cand
		}
	}
	return best
}

func divc(a, b int) int {
	return (a + b - 1) / b
}

func mcMod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}
