package he

import (
	"fmt"
	"math"
)

// computeKSNoise estimates the noise variance a single key-switch
// operation adds, summed digit by digit, and panics if the estimate
// would violate the key-switching noise bound (spec.md §4.2, §7).
// Grounded on HElib's computeKSNoise: for each digit group, the added
// noise is phiM * pSpace^2 * exp(2*digitSize) * stdev^2 / 4; the
// resulting total must satisfy
//
//	log(addedNoise) - 2*logOfProduct(specialPrimes) < log(keyWeight) + 2*log(pSpace) + log(phiM) - log(12)
func computeKSNoise(ctx Context, pSpace, keyWeight int64) float64 {
	phiM := float64(ctx.PhiM())
	stdev := ctx.Stdev()
	var addedNoise float64
	for _, digit := range ctx.Digits() {
		digitSize := ctx.LogOfProduct(digit)
		addedNoise += phiM * float64(pSpace*pSpace) * math.Exp(2*digitSize) * stdev * stdev / 4
	}
	bound := math.Log(float64(keyWeight)) + 2*math.Log(float64(pSpace)) + math.Log(phiM) - math.Log(12)
	if math.Log(addedNoise)-2*ctx.LogOfProduct(ctx.SpecialPrimes()) >= bound {
		panic(fmt.Errorf("cannot key-switch: added noise exceeds the key-switching noise bound"))
	}
	return addedNoise
}

// BasicAutomorphPrecon hoists the expensive digit decomposition of a
// ciphertext's key-switchable part across any number of subsequent
// automorphisms (spec.md §4.2: "Construction decomposes the
// ciphertext's key-switchable part into digits once; each subsequent
// call rotates the cached digits and key-switches, reusing the
// decomposition"). Grounded on newmatmul.cpp's BasicAutomorphPrecon.
type BasicAutomorphPrecon struct {
	ctxt    Ciphertext
	part0   CiphertextPart
	digits  []Digit
	ctx     Context
	pk      PublicKey
	keyID   int
	nDigits int
}

// NewBasicAutomorphPrecon builds a BasicAutomorphPrecon over ctxt, which
// must be a clean (two-part) ciphertext whose first part carries no
// secret key and whose second part is the base component under its own
// key id, with a prime set disjoint from the special primes (spec.md §7:
// preconditions on part shape and prime-set disjointness are programming
// errors). Panics on any violated precondition or noise-bound breach.
func NewBasicAutomorphPrecon(ctxt Ciphertext, ctx Context, pk PublicKey) *BasicAutomorphPrecon {
	parts := ctxt.Parts()
	if len(parts) != 2 {
		panic(fmt.Errorf("cannot precondition automorphism: ciphertext must have exactly two parts, got %d", len(parts)))
	}
	if !parts[0].SkHandleIsOne() {
		panic(fmt.Errorf("cannot precondition automorphism: part 0 must carry no secret key"))
	}
	keyID := ctxt.KeyID()
	if !parts[1].SkHandleIsBase(keyID) {
		panic(fmt.Errorf("cannot precondition automorphism: part 1 must be the base component under key %d", keyID))
	}
	special := make(map[int]bool, len(ctx.SpecialPrimes()))
	for _, p := range ctx.SpecialPrimes() {
		special[p] = true
	}
	for _, p := range ctxt.PrimeSet() {
		if special[p] {
			panic(fmt.Errorf("cannot precondition automorphism: ciphertext prime set overlaps the special primes"))
		}
	}

	nDigits := len(ctx.Digits())
	pSpace := pk.KeySwitchListPtxtSpace()
	keyWeight := pk.SecretKeyWeight(keyID)
	computeKSNoise(ctx, pSpace, keyWeight)

	digits := parts[1].BreakIntoDigits(nDigits)
	return &BasicAutomorphPrecon{
		ctxt:    ctxt.Clone(),
		part0:   parts[0].Clone(),
		digits:  digits,
		ctx:     ctx,
		pk:      pk,
		keyID:   keyID,
		nDigits: nDigits,
	}
}

// Automorph returns a clone of the underlying ciphertext rotated by the
// automorphism group element k, reusing the cached digit decomposition
// (spec.md §4.2). k == 1 is the identity and returns a plain clone.
func (p *BasicAutomorphPrecon) Automorph(k int) Ciphertext {
	if k == 1 {
		return p.ctxt.Clone()
	}

	part0 := p.part0.Clone()
	part0.Automorph(k)
	part0.AddPrimesAndScale(p.ctx.SpecialPrimes())

	digits := make([]Digit, len(p.digits))
	for i, d := range p.digits {
		dc := d.Clone()
		dc.Automorph(k)
		digits[i] = dc
	}

	if !p.pk.HaveKeySwitchMatrix(k, 1, p.keyID, p.keyID) {
		panic(fmt.Errorf("cannot automorph by %d: no key-switching matrix registered", k))
	}
	w := p.pk.KeySwitchMatrix(k, 1, p.keyID, p.keyID)

	result := p.ctxt.ZeroLike()
	result.AddPart(part0, false)
	result.KeySwitchDigits(w, digits)
	return result
}

// orderForDim returns the order of dim, treating dim == -1 as the
// Frobenius axis (spec.md §4.3, §6).
func orderForDim(ctx Context, dim int) int {
	if dim == -1 {
		return ctx.OrdP()
	}
	return ctx.OrderOf(dim)
}

// GeneralAutomorphPrecon produces rotated copies of a fixed base
// ciphertext by exponent along dim, hoisting as much shared work as the
// declared key-switching strategy allows (spec.md §4.3). The three
// concrete strategies below are a closed set, dispatched statically
// rather than through an open registry (spec.md §9 design note).
type GeneralAutomorphPrecon interface {
	// Automorph returns a clone of the base ciphertext rotated by i
	// steps along dim (i.e. by generator^i).
	Automorph(i int) Ciphertext
}

// unknownAutomorphPrecon is the no-hoisting fallback: every call clones
// the base ciphertext and applies a full SmartAutomorph.
type unknownAutomorphPrecon struct {
	ctxt Ciphertext
	dim  int
	ctx  Context
}

func (p *unknownAutomorphPrecon) Automorph(i int) Ciphertext {
	if i == 0 {
		return p.ctxt.Clone()
	}
	c := p.ctxt.Clone()
	c.SmartAutomorph(p.ctx.GenToPow(p.dim, i))
	return c
}

// fullAutomorphPrecon hoists the digit decomposition once for the whole
// dimension, via a single BasicAutomorphPrecon.
type fullAutomorphPrecon struct {
	precon *BasicAutomorphPrecon
	dim    int
	ctx    Context
}

func (p *fullAutomorphPrecon) Automorph(i int) Ciphertext {
	return p.precon.Automorph(p.ctx.GenToPow(p.dim, i))
}

// bsgsAutomorphPrecon hoists the digit decomposition once per giant
// step, then reuses each giant-step BasicAutomorphPrecon across its g
// baby steps (spec.md §4.3): ceil(D/g) giant-step preconditioners, each
// itself hoisting its g baby steps.
type bsgsAutomorphPrecon struct {
	intervals []*BasicAutomorphPrecon
	g         int
	dim       int
	ctx       Context
}

func (p *bsgsAutomorphPrecon) Automorph(i int) Ciphertext {
	k := i / p.g
	j := i % p.g
	return p.intervals[k].Automorph(p.ctx.GenToPow(p.dim, j))
}

// BuildGeneralAutomorphPrecon dispatches on pk's declared strategy for
// dim and builds the matching GeneralAutomorphPrecon (spec.md §4.3).
// workers bounds the parallelism used to build the BSGS strategy's
// per-giant-step preconditioners.
func BuildGeneralAutomorphPrecon(ctxt Ciphertext, dim int, ctx Context, pk PublicKey, workers int) (GeneralAutomorphPrecon, error) {
	switch pk.KSStrategy(dim) {
	case KSFull:
		return &fullAutomorphPrecon{precon: NewBasicAutomorphPrecon(ctxt, ctx, pk), dim: dim, ctx: ctx}, nil

	case KSBSGS:
		D := orderForDim(ctx, dim)
		g := KSGiantStepSize(D)
		nintervals := divc(D, g)

		precon0 := NewBasicAutomorphPrecon(ctxt, ctx, pk)
		intervals := make([]*BasicAutomorphPrecon, nintervals)
		pool := newWorkerPool(workers)
		for k := 0; k < nintervals; k++ {
			k := k
			pool.Run(func(int) error {
				rotated := precon0.Automorph(ctx.GenToPow(dim, g*k))
				intervals[k] = NewBasicAutomorphPrecon(rotated, ctx, pk)
				return nil
			})
		}
		if err := pool.Wait(); err != nil {
			return nil, fmt.Errorf("cannot build BSGS automorphism preconditioner: %w", err)
		}
		return &bsgsAutomorphPrecon{intervals: intervals, g: g, dim: dim, ctx: ctx}, nil

	default:
		return &unknownAutomorphPrecon{ctxt: ctxt, dim: dim, ctx: ctx}, nil
	}
}

// GenBabySteps builds the g baby-step rotations of ctxt along dim,
// 0..g-1, hoisting the digit decomposition across them whenever pk
// declares a strategy for dim (spec.md §4.5: "GenBabySteps produces the
// baby-step ciphertexts once per mul call, shared by every giant step").
// clean requests the g == 1 shortcut clone be cleaned up before return.
func GenBabySteps(ctxt Ciphertext, dim int, ctx Context, pk PublicKey, g int, clean bool, workers int) ([]Ciphertext, error) {
	v := make([]Ciphertext, g)

	if g == 1 {
		c := ctxt.Clone()
		if clean {
			c.CleanUp()
		}
		v[0] = c
		return v, nil
	}

	if pk.KSStrategy(dim) != KSUnknown {
		precon := NewBasicAutomorphPrecon(ctxt, ctx, pk)
		pool := newWorkerPool(workers)
		for j := 0; j < g; j++ {
			j := j
			pool.Run(func(int) error {
				v[j] = precon.Automorph(ctx.GenToPow(dim, j))
				return nil
			})
		}
		if err := pool.Wait(); err != nil {
			return nil, fmt.Errorf("cannot generate baby steps: %w", err)
		}
		return v, nil
	}

	ctxt0 := ctxt.Clone()
	ctxt0.CleanUp()
	pool := newWorkerPool(workers)
	for j := 0; j < g; j++ {
		j := j
		pool.Run(func(int) error {
			c := ctxt0.Clone()
			c.SmartAutomorph(ctx.GenToPow(dim, j))
			v[j] = c
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, fmt.Errorf("cannot generate baby steps: %w", err)
	}
	return v, nil
}
