// Package clone materializes a fresh local copy of a remote or local
// source repository: it resolves the source, provisions the
// destination's on-disk layout, optionally primes the object database
// from an out-of-band resource, negotiates refs over a transport,
// writes local ref mappings, configures the remote, and populates the
// working tree.
//
// Every git-level operation is delegated to the git binary itself via
// subprocess, with orchestration, error disposition, and cleanup done
// in Go.
//
// # Logging
//
// the package takes an *slog.Logger and logs up to 'trace' level
// (slog.Level(-8)), the same convention used throughout this module:
//
//	loggerLevel := new(slog.LevelVar)
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: loggerLevel}))
//	loggerLevel.Set(slog.Level(-8))
package clone
