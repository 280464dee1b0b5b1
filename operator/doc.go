// Package operator defines the distributed linear-operator representations
// the eigensolver works with.
//
// Three representations exist, mirroring how operators arrive from upstream
// system assembly:
//
//   - SparseMatrix: the canonical handle the eigensolver engine accepts
//     directly, either assembled (explicit local CSR block) or shell
//     (matrix-free, forwarding applications to a wrapped operator).
//   - CSRMatrix: an assembled intermediate representation produced by system
//     formation; not accepted by the engine without conversion.
//   - Operator: any generic distributed operator exposing only its layout and
//     apply action.
//
// All matrices and vectors are distributed by contiguous row blocks over the
// ranks of a communicator, described by a Layout.
package operator
