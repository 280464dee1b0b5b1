// Package eigengo is a distributed generalized eigenvalue solver façade.
//
// Eigengo adapts heterogeneous distributed linear-operator representations
// into the canonical sparse matrix form its solver engine accepts, drives a
// configure-then-solve cycle against that engine, and hands converged
// eigenpairs back through lazily created, buffer-borrowing vector views.
//
// # Lifecycle
//
// The library holds process-wide engine state. Initialize it exactly once
// before constructing solvers and finalize it exactly once after closing the
// last one:
//
//	eigengo.Init()
//	defer eigengo.Finalize()
//
//	c := comm.Self()
//	s := eigengo.New(c, "myprob_")
//	defer s.Close()
//
// # Solving
//
// Register one operator for a standard problem A·v = λ·v, or two for a
// generalized problem A·v = λ·B·v, configure, solve, and read results:
//
//	s.SetOperators(A, B)
//	s.SetNumModes(3)
//	s.SetWhichEigenpairs(eigengo.SmallestReal)
//	s.Solve()
//
//	for i := 0; i < s.GetNumConverged(); i++ {
//	    fmt.Println(s.GetEigenvalue(i))
//	}
//
// Operators that are not yet canonical are adapted automatically: assembled
// CSR blocks are copied (or shell-wrapped with WithMatrixFree), generic
// operators are probed through their apply action. All operations are
// collective over the communicator the solver was constructed with; every
// rank must issue the same call sequence.
//
// # Errors
//
// Engine and configuration failures are not recoverable in place: continuing
// with an inconsistent collective engine state across ranks is unsafe. The
// façade logs the failing operation and panics with a *FatalError.
// Non-convergence is not an error; callers check GetNumConverged before
// indexing into results.
package eigengo
