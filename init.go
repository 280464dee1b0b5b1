package eigengo

import "github.com/hupe1980/eigengo/engine"

// Init sets up the process-wide engine state. It must run exactly once,
// before any solver is constructed, on every rank. Nesting is a fatal usage
// error.
func Init() {
	InitWithOptions(nil, "", "")
}

// InitWithOptions is Init with argument-vector passthrough, an optional
// rc-file path merged into the external options database, and a help string
// recorded for diagnostics. Option arguments are "-key value" or
// "-key=value" pairs; keys are matched against each solver's options prefix
// when Customize merges them.
func InitWithOptions(args []string, rcFile, help string) {
	if err := engine.Initialize(args, rcFile, help); err != nil {
		fatal(nil, "Initialize", err)
	}
}

// Finalize tears down the process-wide engine state. It must run exactly
// once, after every solver has been closed. Finalizing with live solvers,
// twice, or without a prior Init is a fatal usage error.
func Finalize() {
	if err := engine.Finalize(); err != nil {
		fatal(nil, "Finalize", err)
	}
}
