// Package he implements a scheme-agnostic planner and executor for
// homomorphic one-dimensional linear transformations over the slots of
// a ciphertext, in two flavors: MatMul1D (scalar diagonals) and
// BlockMatMul1D (block-of-d diagonals, with a second Frobenius axis).
//
// The package never encrypts, decrypts, or performs ring arithmetic
// itself: every cryptographic primitive (rotation, key-switching,
// constant multiplication, encoding) is consumed through the
// collaborator contracts in context.go. Concrete implementations of
// those contracts — the HE context, the ciphertext type, the
// key-switching matrix store, the plaintext encoder — live outside
// this package; he/hetest provides a plaintext fake used by the tests.
package he
