//go:build linux || darwin

package main

import "golang.org/x/sys/unix"

// raiseNoFile bumps the open-file-descriptor soft limit to the hard
// ceiling at startup. A daemon juggling syslog UDP/TCP sockets, every
// file-watcher's open handle, and one bbolt file per store can exhaust
// a distro's conservative default (1024) well before any real load.
func raiseNoFile(log interface{ Warnf(string, ...interface{}) error }) {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		log.Warnf("getrlimit NOFILE failed: %v", err)
		return
	}
	if rl.Cur >= rl.Max {
		return
	}
	rl.Cur = rl.Max
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rl); err != nil {
		log.Warnf("setrlimit NOFILE to %d failed: %v", rl.Max, err)
	}
}
