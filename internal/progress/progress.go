// Package progress reports pipeline phase progress, grounded on the
// teacher's elapsed-time stderr logger (progress.go) but backed by
// go.uber.org/zap's SugaredLogger instead of raw fmt.Fprintf.
package progress

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Progress reports pipeline progress with an elapsed-time prefix.
type Progress struct {
	start   time.Time
	log     *zap.SugaredLogger
	verbose bool
}

// New builds a Progress reporter around a zap logger appropriate for
// the requested verbosity: development encoding (readable, colorized
// level names) when verbose, production JSON otherwise.
func New(verbose bool) *Progress {
	var zl *zap.Logger
	var err error
	if verbose {
		zl, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.DisableStacktrace = true
		zl, err = cfg.Build()
	}
	if err != nil {
		zl = zap.NewNop()
	}
	return &Progress{start: time.Now(), log: zl.Sugar(), verbose: verbose}
}

// Log reports a phase message unconditionally, tagged with elapsed time.
func (p *Progress) Log(format string, args ...any) {
	p.log.Infof("[%s] "+format, append([]any{p.elapsed()}, args...)...)
}

// Verbose reports a message only when verbose mode is enabled.
func (p *Progress) Verbose(format string, args ...any) {
	if p.verbose {
		p.Log(format, args...)
	}
}

// Warn reports a problem (a failed detector, a SymbolicError, a failed
// cache write) without itself aborting the run.
func (p *Progress) Warn(format string, args ...any) {
	p.log.Warnf("[%s] "+format, append([]any{p.elapsed()}, args...)...)
}

func (p *Progress) elapsed() string {
	e := time.Since(p.start)
	mins := int(e.Minutes())
	secs := int(e.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", mins, secs)
}

// Sync flushes the underlying zap logger; call it before process exit.
func (p *Progress) Sync() error {
	return p.log.Sync()
}
