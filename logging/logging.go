// Package logging provides the solver's diagnostic logging interface,
// adapted from the teacher engine's Logger: a small interface with a
// default implementation wrapping the standard log package, plus a no-op
// implementation for tests and benchmarks.
package logging

import (
	"fmt"
	"log"
	"os"
	"sync"

	"upbd/device"
)

// Logger is the diagnostic surface the solver writes to. Construction-time
// failures go through ConstructionError, which branches on the device
// package's typed error kinds rather than a single generic message; routine
// per-substep state goes through SubstepDiagnostics at Debug level only —
// never per-particle or per-kernel-launch data, which would dominate a 60Hz
// budget.
type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	ConstructionError(err error)
	SubstepDiagnostics(substep, n, r, occupiedCells, sleeping int)
}

// DefaultLogger writes level-prefixed lines to stdout (debug/info) and
// stderr (warn/error).
type DefaultLogger struct {
	mu     sync.Mutex
	debug  bool
	prefix string
	out    *log.Logger
	err    *log.Logger
}

// NewDefaultLogger builds a DefaultLogger with the given prefix and
// initial debug setting.
func NewDefaultLogger(prefix string, debug bool) *DefaultLogger {
	flags := log.LstdFlags | log.Lmicroseconds
	return &DefaultLogger{
		debug:  debug,
		prefix: prefix,
		out:    log.New(os.Stdout, "", flags),
		err:    log.New(os.Stderr, "", flags),
	}
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

func (l *DefaultLogger) prefixf(level, format string, args ...any) string {
	if l.prefix != "" {
		return fmt.Sprintf("[%s] %s: %s", l.prefix, level, fmt.Sprintf(format, args...))
	}
	return fmt.Sprintf("%s: %s", level, fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	l.mu.Lock()
	dbg := l.debug
	l.mu.Unlock()
	if !dbg {
		return
	}
	l.out.Print(l.prefixf("DEBUG", format, args...))
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.out.Print(l.prefixf("INFO", format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.err.Print(l.prefixf("WARN", format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.err.Print(l.prefixf("ERROR", format, args...))
}

// ConstructionError logs a scene-construction failure at Error level,
// branching on the device package's typed error kinds so the message names
// which invariant tripped (capacity, off-center reference, device
// allocation, kernel dispatch) instead of a single generic "failed: %v".
// Append errors never originate anywhere but construction (§7), so this is
// the only place a Logger needs to understand device's error kinds.
func (l *DefaultLogger) ConstructionError(err error) {
	switch e := err.(type) {
	case *device.CapacityExceededError:
		l.Errorf("capacity exceeded for %s: requested %d, capacity %d", e.Kind, e.Requested, e.Capacity)
	case *device.OffCenterReferenceError:
		l.Errorf("rigid body reference positions not centered: centroid magnitude %g", e.CentroidMagnitude)
	case *device.DeviceAllocationFailureError:
		l.Errorf("device allocation failed: %s", e.Reason)
	case *device.KernelDispatchFailureError:
		l.Errorf("kernel %q dispatch failed: %s", e.Kernel, e.Reason)
	default:
		l.Errorf("construction failed: %v", err)
	}
}

// SubstepDiagnostics logs the coarse state a single substep actually
// produces: live particle/body counts, how many uniform-grid cells the
// rebuilt grid occupied, and how many non-fluid particles stayed below the
// sleep threshold and were left uncommitted this substep. Called once per
// substep rather than once per Update, so a caller with Debug enabled sees
// the pipeline's actual per-substep cadence instead of one frame-level
// summary line.
func (l *DefaultLogger) SubstepDiagnostics(substep, n, r, occupiedCells, sleeping int) {
	if !l.DebugEnabled() {
		return
	}
	l.Debugf("substep %d: N=%d R=%d occupiedCells=%d sleeping=%d", substep, n, r, occupiedCells, sleeping)
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything, for tests and
// benchmarks that don't want construction-time log noise.
func NewNopLogger() Logger { return &nopLogger{} }

func (n *nopLogger) DebugEnabled() bool                                          { return false }
func (n *nopLogger) SetDebug(enabled bool)                                       {}
func (n *nopLogger) Debugf(format string, args ...any)                           {}
func (n *nopLogger) Infof(format string, args ...any)                            {}
func (n *nopLogger) Warnf(format string, args ...any)                            {}
func (n *nopLogger) Errorf(format string, args ...any)                           {}
func (n *nopLogger) ConstructionError(err error)                                 {}
func (n *nopLogger) SubstepDiagnostics(substep, count, bodies, cells, sleeping int) {}
