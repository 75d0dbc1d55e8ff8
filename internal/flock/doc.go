// Package flock guards a file store's read-modify-write cycle with an
// exclusive OS file lock so that CLI processes and the relay simulator can
// share one store file.
//
//	lock, err := flock.Acquire(ctx, path+".lock", 5*time.Second, 50*time.Millisecond)
//	if err != nil {
//	    return err
//	}
//	defer lock.Release()
package flock
