package epubsplit

import (
	"fmt"
	"os"
)

// withStagingFile writes data to a fresh temporary file, calls fn with its
// path and removes the file afterwards, whether fn succeeds, fails or
// panics. dir "" means os.TempDir.
func withStagingFile(dir string, data []byte, fn func(path string) error) (err error) {
	f, err := os.CreateTemp(dir, "epubsplit-*.epub")
	if err != nil {
		return fmt.Errorf("epubsplit: create staging file: %w", err)
	}
	name := f.Name()
	defer func() {
		if rmErr := os.Remove(name); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = fmt.Errorf("epubsplit: remove staging file: %w", rmErr)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("epubsplit: write staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("epubsplit: close staging file: %w", err)
	}
	return fn(name)
}
