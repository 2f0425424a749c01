package testing

import (
	"os"
	"path/filepath"
)

const DefaultTestDirRoot = "aploc-test"

func DefaultTestDir() string {
	return filepath.Join(os.TempDir(), DefaultTestDirRoot)
}
