package wii

import (
	"go.uber.org/zap"
)

// Verification error bits, one per Merkle level. These replace the source's
// global "u32 errors" accumulator (original_source/negentig.c) with a field
// on Session so the cumulative state is explicit and testable in isolation.
const (
	ErrH0 uint8 = 1 << iota
	ErrH1
	ErrH2
	ErrH3
)

var errorNames = map[uint8]string{
	ErrH0: "H0 mismatch",
	ErrH1: "H1 mismatch",
	ErrH2: "H2 mismatch",
	ErrH3: "H3 mismatch",
}

// Session is the single place mutable, cross-component state lives: the
// cumulative verification-error byte, the diagnostic logger, the run
// options and the platform common key. Every component that previously
// relied on a process-wide global (disc handle, partition offsets, H3
// buffer, error accumulator) now receives a *Session explicitly instead.
type Session struct {
	Options   Options
	CommonKey [KeySize]byte
	Logger    *zap.SugaredLogger

	errors uint8
}

// NewSession constructs a Session. logger may be nil, in which case a no-op
// logger is used.
func NewSession(opts Options, commonKey [KeySize]byte, logger *zap.SugaredLogger) *Session {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Session{
		Options:   opts,
		CommonKey: commonKey,
		Logger:    logger,
	}
}

// markError ORs bit into the cumulative verification-error byte and logs
// one diagnostic line. Verification errors never abort extraction.
func (s *Session) markError(bit uint8, msg string, args ...interface{}) {
	s.errors |= bit
	s.Logger.Warnw(msg, args...)
}

// Errors returns the cumulative verification-error byte accumulated so far.
func (s *Session) Errors() uint8 {
	return s.errors
}

// Summary renders one line per set bit among H0-H3, in that order, for the
// process-exit diagnostic summary of spec.md §6.
func (s *Session) Summary() []string {
	var lines []string
	for _, bit := range []uint8{ErrH0, ErrH1, ErrH2, ErrH3} {
		if s.errors&bit != 0 {
			lines = append(lines, errorNames[bit])
		}
	}
	return lines
}
