//go:build !unix

package utils

import "os"

func CanTraverse(dir string) bool {
	f, err := os.Open(dir)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	return err == nil && info.IsDir() && info.Mode().Perm()&0o200 != 0
}

func CanExecute(path string) bool {
	return FileExists(path)
}
