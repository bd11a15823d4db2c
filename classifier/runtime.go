package classifier

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
	"golang.org/x/sys/cpu"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// InitRuntime loads the ONNX Runtime shared library and initializes its
// environment. It runs once per process; later calls return the first
// result. An empty libraryPath falls back to ONNXRUNTIME_LIB,
// ONNXRUNTIME_ROOT and LD_LIBRARY_PATH, then to the loader's default search.
func InitRuntime(libraryPath string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	runtimeOnce.Do(func() {
		path := resolveLibraryPath(libraryPath)
		if path != "" {
			ort.SetSharedLibraryPath(path)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			runtimeErr = fmt.Errorf("initializing ONNX Runtime: %w", err)
			return
		}
		logger.Info("ONNX Runtime initialized",
			zap.String("library", path),
			zap.Any("cpu", DetectCPUFeatures()))
	})
	return runtimeErr
}

func ShutdownRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

func resolveLibraryPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if lib := os.Getenv("ONNXRUNTIME_LIB"); lib != "" {
		return lib
	}

	name := libraryName()
	if root := os.Getenv("ONNXRUNTIME_ROOT"); root != "" {
		platformDir := filepath.Join(root, runtime.GOOS+"-"+runtime.GOARCH, "lib")
		for _, dir := range []string{platformDir, filepath.Join(root, "lib")} {
			if fileExists(filepath.Join(dir, name)) {
				return filepath.Join(dir, name)
			}
		}
	}
	for _, dir := range filepath.SplitList(os.Getenv("LD_LIBRARY_PATH")) {
		if fileExists(filepath.Join(dir, name)) {
			return filepath.Join(dir, name)
		}
	}
	return ""
}

func libraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CPUFeatures lists the instruction set extensions ONNX Runtime kernels can
// take advantage of on this host.
type CPUFeatures struct {
	Arch    string `json:"arch"`
	NumCPU  int    `json:"numCPU"`
	AVX     bool   `json:"avx,omitempty"`
	AVX2    bool   `json:"avx2,omitempty"`
	AVX512F bool   `json:"avx512f,omitempty"`
	FMA     bool   `json:"fma,omitempty"`
	SSE41   bool   `json:"sse41,omitempty"`
	ASIMD   bool   `json:"asimd,omitempty"`
}

func DetectCPUFeatures() CPUFeatures {
	return CPUFeatures{
		Arch:    runtime.GOARCH,
		NumCPU:  runtime.NumCPU(),
		AVX:     cpu.X86.HasAVX,
		AVX2:    cpu.X86.HasAVX2,
		AVX512F: cpu.X86.HasAVX512F,
		FMA:     cpu.X86.HasFMA,
		SSE41:   cpu.X86.HasSSE41,
		ASIMD:   cpu.ARM64.HasASIMD,
	}
}
