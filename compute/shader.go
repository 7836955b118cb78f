package compute

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/NOT-REAL-GAMES/videogen/logging"
	"github.com/NOT-REAL-GAMES/videogen/shaderc"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic = 0x07230203

//go:embed shaders/default.comp
var defaultKernel string

// DefaultKernel returns the GLSL source of the built-in gradient kernel.
func DefaultKernel() string {
	return defaultKernel
}

// ValidateSPIRV checks the size and magic number of a SPIR-V module.
func ValidateSPIRV(code []byte) error {
	if len(code) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidShader)
	}
	if len(code)%4 != 0 {
		return fmt.Errorf("%w: %d bytes is not a multiple of 4", ErrInvalidShader, len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != SPIRVMagic {
		return fmt.Errorf("%w: bad magic %#08x", ErrInvalidShader, magic)
	}
	return nil
}

// LoadShader returns SPIR-V for path. .spv files are read as-is, .comp and
// .glsl files are compiled, and an empty path compiles the built-in kernel.
func LoadShader(path string) ([]byte, error) {
	if path == "" {
		logging.Logger().Info("compiling built-in compute kernel")
		return compile(defaultKernel, "default.comp")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read shader: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".spv":
		if err := ValidateSPIRV(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return data, nil
	case ".comp", ".glsl":
		logging.Logger().Info("compiling compute kernel", "path", path)
		return compile(string(data), filepath.Base(path))
	default:
		return nil, fmt.Errorf("%w: unknown shader extension %q", ErrInvalidShader, filepath.Ext(path))
	}
}

func compile(source, name string) ([]byte, error) {
	spv, err := shaderc.CompileCompute(source, name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", name, err)
	}
	return spv, nil
}
