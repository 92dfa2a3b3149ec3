package host

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wippyai/wasm-runtime/wat"
)

//go:embed script/main.wat
var defaultScriptSource string

// DefaultScript compiles the embedded startup script.
func DefaultScript() ([]byte, error) {
	return CompileScript(defaultScriptSource)
}

// CompileScript compiles WAT source to a WASM binary.
func CompileScript(src string) ([]byte, error) {
	bin, err := wat.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("failed to compile script: %w", err)
	}
	return bin, nil
}

// LoadScript reads a guest from path. ".wat" files are compiled, ".wasm"
// files are used as is.
func LoadScript(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wat":
		return CompileScript(string(data))
	case ".wasm":
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported script extension %q (want .wat or .wasm)", filepath.Ext(path))
	}
}
