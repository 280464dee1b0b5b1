// Package engine implements the eigensolver engine context the façade
// drives.
//
// A Solver is created against a communicator after the process-wide
// Initialize call, configured through immediate setters, fed canonical
// sparse matrix handles, and run with Solve. The backend gathers the global
// operator pair on every rank, reduces the pencil to a standard
// eigenproblem, and computes the full spectrum with gonum's LAPACK
// implementation; because every rank runs the identical
// deterministic computation, collective state stays consistent without
// additional communication during the solve.
//
// External option overrides live in a process-wide options database seeded by
// Initialize from an optional rc file and argument-vector passthrough;
// SetFromOptions merges the keys scoped by the context's options prefix.
package engine
