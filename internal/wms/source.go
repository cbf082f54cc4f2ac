package wms

import (
	"path"
	"path/filepath"
)

// SourceParam returns the value of the ADAGUC "source" parameter for a file.
// The server resolves sources against its input directory: a file directly
// in inputDir is "/<file>", a file in a subdirectory (the upload service puts
// each upload in its own temporary directory) is "/<subdir>/<file>". With no
// input directory configured the file is addressed by name.
func SourceParam(inputDir, file string) string {
	name := filepath.Base(file)
	if inputDir == "" {
		return "/" + name
	}
	dir := filepath.Dir(file)
	if filepath.Clean(dir) == filepath.Clean(inputDir) {
		return "/" + name
	}
	return path.Join("/", filepath.Base(dir), name)
}
