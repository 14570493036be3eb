// Package onnx wraps ONNX Runtime for the feature and wake-word models.
package onnx

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// LibraryPathEnv overrides the ONNX Runtime shared library location.
const LibraryPathEnv = "ONNXRUNTIME_LIB_PATH"

// initOnce ensures ONNX Runtime is initialized only once
var (
	initOnce    sync.Once
	initErr     error
	libraryPath string
	libraryMu   sync.Mutex
)

// SetLibraryPath sets the shared library used by Init. It has no effect once
// the runtime has been initialized.
func SetLibraryPath(path string) {
	libraryMu.Lock()
	defer libraryMu.Unlock()
	libraryPath = path
}

// Init initializes the ONNX Runtime environment once per process.
func Init() error {
	initOnce.Do(func() {
		ort.SetSharedLibraryPath(LibraryPath())
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", initErr)
	}
	return nil
}

// LibraryPath returns the path to the ONNX Runtime shared library.
func LibraryPath() string {
	libraryMu.Lock()
	explicit := libraryPath
	libraryMu.Unlock()
	if explicit != "" {
		return explicit
	}

	// Check environment variable first
	if path := os.Getenv(LibraryPathEnv); path != "" {
		return path
	}

	// macOS: brew install onnxruntime
	// Linux: apt install libonnxruntime
	candidates := []string{
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/local/lib/libonnxruntime.dylib",
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
		"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
		"/usr/lib/aarch64-linux-gnu/libonnxruntime.so",
		"C:\\Program Files\\onnxruntime\\onnxruntime.dll",
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	// Fallback - let the library try to find it
	return "onnxruntime"
}
