package he

// constState tracks which representation a ConstMultiplier's data is
// held in. Transitions are monotonic: Poly -> Evaluated, never backward
// (spec.md §3).
type constState int

const (
	constPoly constState = iota
	constEvaluated
)

// ConstMultiplier is an opaque handle to a plaintext constant usable for
// homomorphic multiplication. It starts out in Poly (coefficient) form,
// which is small to store but slow to multiply, and can be upgraded
// once to Evaluated (CRT/NTT) form, which is large but fast to multiply
// (spec.md §4.1). A nil *ConstMultiplier represents an all-zero diagonal
// and callers must treat a nil entry as "skip this multiplication"
// (spec.md §3, §8 property 7).
type ConstMultiplier struct {
	data  any
	state constState
}

// BuildConstMultiplier wraps poly into a ConstMultiplier, or returns nil
// if enc reports poly as the zero constant (spec.md §4.1: "A factory
// converts a polynomial to a constant, returning null when the
// polynomial is zero").
func BuildConstMultiplier[E any](poly any, enc Encoder[E]) *ConstMultiplier {
	if enc.IsZeroPoly(poly) {
		return nil
	}
	return &ConstMultiplier{data: poly, state: constPoly}
}

// BuildConstMultiplierRotated is BuildConstMultiplier, additionally
// applying a plaintext automorphism by amt along dim before wrapping
// (BuildMatMul1DCache passes -g*k for Cache and D-g*k for Cache1),
// so that the stored constant, once multiplied into a rotated
// ciphertext, yields the correct term of the BSGS outer sum (spec.md
// §4.1, §4.4 "Rotation fusion amount").
func BuildConstMultiplierRotated[E any](poly any, dim, amt int, enc Encoder[E]) (*ConstMultiplier, error) {
	if enc.IsZeroPoly(poly) {
		return nil, nil
	}
	rotated, err := enc.Automorph(poly, dim, amt)
	if err != nil {
		return nil, err
	}
	return &ConstMultiplier{data: rotated, state: constPoly}, nil
}

// Mul multiplies ctxt in place by the held constant. A nil receiver is a
// no-op: callers calling through MulAdd/DestMulAdd never need to check
// for nil themselves.
func (c *ConstMultiplier) Mul(ctxt Ciphertext) {
	if c == nil {
		return
	}
	ctxt.MultiplyByConstant(c.data)
}

// Upgrade returns a replacement ConstMultiplier in Evaluated form, or
// nil if the receiver is already evaluated (spec.md §4.1). Concurrent
// upgrade of distinct ConstMultiplier values is safe; callers must not
// call Upgrade on the same value from two goroutines at once, nor call
// it concurrently with Mul on that same value (spec.md §5).
func (c *ConstMultiplier) Upgrade(enc encoderUpgrader) (*ConstMultiplier, error) {
	if c == nil || c.state == constEvaluated {
		return nil, nil
	}
	evaluated, err := enc.ToEvaluated(c.data)
	if err != nil {
		return nil, err
	}
	if evaluated == nil {
		return nil, nil
	}
	return &ConstMultiplier{data: evaluated, state: constEvaluated}, nil
}

// encoderUpgrader is the subset of Encoder[E] that Upgrade needs; kept
// non-generic so ConstMultiplier (which forgets E once built) can carry
// it without a type parameter of its own.
type encoderUpgrader interface {
	ToEvaluated(poly any) (any, error)
}

// MulAdd evaluates x += a*b without mutating b (spec.md §4.1: "x += a*b").
func MulAdd(x Ciphertext, a *ConstMultiplier, b Ciphertext) {
	if a == nil {
		return
	}
	tmp := b.Clone()
	a.Mul(tmp)
	x.Add(tmp)
}

// DestMulAdd evaluates x += a*b, multiplying b in place rather than a
// fresh clone (spec.md §4.1: "x += a*b, b may be modified"). Use only
// when the caller no longer needs b's original value.
func DestMulAdd(x Ciphertext, a *ConstMultiplier, b Ciphertext) {
	if a == nil {
		return
	}
	a.Mul(b)
	x.Add(b)
}

// ConstMultiplierCache is a diagonal cache: two parallel slices of
// ConstMultiplier handles indexed by diagonal index, one for the
// native/"first" representation (cache) and one, populated only for
// non-native dimensions, for the "last D-i slots" complement (cache1)
// (spec.md §3).
type ConstMultiplierCache struct {
	Cache, Cache1 []*ConstMultiplier
}

// Upgrade migrates every non-nil entry of both cache slices to Evaluated
// form in place, fanning the walk out across workers via pool (spec.md
// §4.1, §6 "ConstMultiplierCache::upgrade(context) -> migrates all
// constants to evaluated form (parallel)"). Precondition: no concurrent
// mul() call on an executor sharing this cache (spec.md §5).
func (c *ConstMultiplierCache) Upgrade(enc encoderUpgrader, workers int) error {
	pool := newWorkerPool(workers)
	upgradeOne := func(s []*ConstMultiplier, i int) func(int) error {
		return func(int) error {
			if s[i] == nil {
				return nil
			}
			replacement, err := s[i].Upgrade(enc)
			if err != nil {
				return err
			}
			if replacement != nil {
				s[i] = replacement
			}
			return nil
		}
	}
	for i := range c.Cache {
		pool.Run(upgradeOne(c.Cache, i))
	}
	for i := range c.Cache1 {
		pool.Run(upgradeOne(c.Cache1, i))
	}
	return pool.Wait()
}
