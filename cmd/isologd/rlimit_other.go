//go:build !linux && !darwin

package main

// raiseNoFile is a no-op on platforms without an RLIMIT_NOFILE concept.
func raiseNoFile(log interface{ Warnf(string, ...interface{}) error }) {}
