package model

import "os"

// statSize returns the size in bytes of the file at path. It is a package
// variable so package_test.go can substitute fixture files without touching
// the real filesystem beyond what os.Stat already requires.
var statSize = func(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
