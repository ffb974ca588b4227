//go:build unix

package utils

import "golang.org/x/sys/unix"

// CanTraverse reports whether the current process may list, modify and enter dir
func CanTraverse(dir string) bool {
	return unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK) == nil
}

// CanExecute reports whether the current process may read and run path
func CanExecute(path string) bool {
	return unix.Access(path, unix.R_OK|unix.X_OK) == nil
}
