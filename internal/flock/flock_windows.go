//go:build windows

package flock

import "golang.org/x/sys/windows"

// One byte at offset zero stands for the whole file.
const (
	lockBytesLow  = 1
	lockBytesHigh = 0
)

func tryLock(fd uintptr) error {
	return windows.LockFileEx(
		windows.Handle(fd),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0,
		lockBytesLow,
		lockBytesHigh,
		&windows.Overlapped{},
	)
}

func unlock(fd uintptr) error {
	return windows.UnlockFileEx(windows.Handle(fd), 0, lockBytesLow, lockBytesHigh, &windows.Overlapped{})
}
