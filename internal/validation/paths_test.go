package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	testCases := []struct {
		name        string
		path        string
		expectValid bool
	}{
		{name: "simple_relative", path: "file.txt", expectValid: true},
		{name: "relative_with_subdir", path: "subdir/file.txt", expectValid: true},
		{name: "relative_parent", path: "../file.txt", expectValid: true},
		{name: "absolute_unix", path: "/tmp/file.txt", expectValid: true},
		{name: "complex_traversal", path: "subdir/../../../etc/passwd", expectValid: true},
		{name: "empty", path: "", expectValid: false},
		{name: "null_byte", path: "file\x00.txt", expectValid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilePath(tc.path)
			if tc.expectValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidateFilePaths(t *testing.T) {
	testCases := []struct {
		name        string
		paths       []string
		expectValid bool
	}{
		{name: "all_valid", paths: []string{"file1.txt", "dir/file2.txt", "/tmp/file3.txt"}, expectValid: true},
		{name: "empty_list", paths: []string{}, expectValid: true},
		{name: "one_empty", paths: []string{"file1.txt", "", "file3.txt"}, expectValid: false},
		{name: "one_null_byte", paths: []string{"file1.txt", "file\x00.txt", "file3.txt"}, expectValid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilePaths(tc.paths)
			if tc.expectValid {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "index")
		})
	}
}
