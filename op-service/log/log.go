// Package log wires up the process-wide logger. The batch-submission
// pipeline itself only ever asks for a log.Logger to pass to each actor;
// this package is the one place that decides format and level.
package log

import (
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
)

// SetupDefaults installs a root logger with a sensible default level and
// colored output when stdout is a terminal, mirroring the
// klog.SetupDefaults() convenience used elsewhere in this codebase family.
func SetupDefaults() {
	SetupWithLevel(log.LevelInfo)
}

// SetupWithLevel installs a root logger at the given level.
func SetupWithLevel(lvl slogLevel) {
	handler := log.NewTerminalHandlerWithLevel(os.Stdout, lvl, isatty.IsTerminal(os.Stdout.Fd()))
	log.SetDefault(log.NewLogger(handler))
}

// slogLevel is a thin alias so callers outside this package never need to
// import go-ethereum's log package just to pick a level.
type slogLevel = slog.Level

// NewLogger builds a standalone logger at the given level, for actors or
// tests that want their own handle rather than mutating the process default.
func NewLogger(lvl slogLevel) log.Logger {
	handler := log.NewTerminalHandlerWithLevel(os.Stdout, lvl, false)
	return log.NewLogger(handler)
}

// ParseLevel maps a CLI-supplied string ("trace","debug","info","warn",
// "error","crit") to a go-ethereum log level, defaulting to info on an
// unrecognized value rather than failing startup over a typo'd flag.
func ParseLevel(s string) slogLevel {
	lvl, err := log.LvlFromString(s)
	if err != nil {
		return log.LevelInfo
	}
	return lvl
}
