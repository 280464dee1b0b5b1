package engine

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

type lifecycleState int

const (
	stateUninitialized lifecycleState = iota
	stateInitialized
	stateFinalized
)

// lib is the process-wide engine state. Initialize and Finalize bracket the
// lifetime of every Solver context in the process.
var lib struct {
	mu           sync.Mutex
	state        lifecycleState
	opts         *viper.Viper
	help         string
	liveContexts int
}

// Initialize prepares the process-wide engine state. It must run exactly
// once, before any Solver is created, on every rank.
//
// args holds "-key value" or "-key=value" pairs seeding the options
// database; a bare "-key" flag is recorded as true. rcFile optionally names a
// configuration file (format by extension: YAML, TOML, JSON, ...) whose
// settings are merged into the database beneath the argument options. help is
// recorded for diagnostics.
func Initialize(args []string, rcFile, help string) error {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	switch lib.state {
	case stateInitialized:
		return ErrAlreadyInitialized
	case stateFinalized:
		return ErrFinalized
	}

	v := viper.New()
	if rcFile != "" {
		v.SetConfigFile(rcFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("engine: read rc file %q: %w", rcFile, err)
		}
	}
	if err := applyArgs(v, args); err != nil {
		return err
	}

	lib.opts = v
	lib.help = help
	lib.liveContexts = 0
	lib.state = stateInitialized
	return nil
}

// applyArgs parses an argument vector of dash-prefixed options into the
// database. Argument settings override rc-file settings because viper ranks
// explicit Set above configuration files.
func applyArgs(v *viper.Viper, args []string) error {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			return fmt.Errorf("engine: option %q does not start with '-'", arg)
		}
		key := strings.TrimLeft(arg, "-")
		if key == "" {
			return fmt.Errorf("engine: empty option name in %q", arg)
		}
		if eq := strings.IndexByte(key, '='); eq >= 0 {
			v.Set(key[:eq], key[eq+1:])
			continue
		}
		if i+1 < len(args) && isValue(args[i+1]) {
			v.Set(key, args[i+1])
			i++
			continue
		}
		v.Set(key, true)
	}
	return nil
}

// isValue reports whether tok is an option value rather than the next option
// name. Negative numbers start with '-' but are still values.
func isValue(tok string) bool {
	if !strings.HasPrefix(tok, "-") {
		return true
	}
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

// Finalize tears down the process-wide engine state. Every Solver context
// must have been destroyed first. A second Finalize, or one without a prior
// Initialize, is an error.
func Finalize() error {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	switch lib.state {
	case stateUninitialized:
		return ErrNotInitialized
	case stateFinalized:
		return ErrFinalized
	}
	if lib.liveContexts > 0 {
		return fmt.Errorf("engine: %d context(s) not destroyed: %w", lib.liveContexts, ErrLiveContexts)
	}
	lib.opts = nil
	lib.help = ""
	lib.state = stateFinalized
	return nil
}

// HelpString returns the help text recorded by Initialize.
func HelpString() string {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return lib.help
}

func registerContext() error {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	switch lib.state {
	case stateUninitialized:
		return ErrNotInitialized
	case stateFinalized:
		return ErrFinalized
	}
	lib.liveContexts++
	return nil
}

func unregisterContext() {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	lib.liveContexts--
}

// optionsDB returns the process options database, or nil before Initialize.
// The database is read-only after Initialize, so concurrent rank goroutines
// may query it without further locking.
func optionsDB() *viper.Viper {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return lib.opts
}
