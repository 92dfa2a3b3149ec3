package process

import (
	"slices"
	"strings"

	"go.uber.org/zap"
)

var (
	// blockedEnvPrefixes are prefixes for variables a script may never set.
	// These are shared library injection vectors.
	blockedEnvPrefixes = []string{
		"LD_",   // Linux dynamic linker (LD_PRELOAD, LD_LIBRARY_PATH, LD_AUDIT, etc.)
		"DYLD_", // macOS dynamic linker (DYLD_INSERT_LIBRARIES, etc.)
	}

	// blockedEnvExact are exact variable names a script may never set.
	blockedEnvExact = []string{
		"IFS",      // Shell internal field separator
		"LOCPATH",  // Custom locale path
		"BASH_ENV", // Executed by non-interactive bash shells
		"ENV",      // Executed by POSIX sh
	}
)

// SanitizeEnv drops malformed entries and variables that are always blocked.
// Returns the sanitized environment slice.
func SanitizeEnv(env []string, logger *zap.Logger) []string {
	if len(env) == 0 {
		return env
	}

	sanitized := make([]string, 0, len(env))
	for _, e := range env {
		key, _, found := strings.Cut(e, "=")
		if !found || key == "" {
			logger.Warn("malformed environment variable skipped", zap.String("env", e))
			continue
		}
		if IsBlockedEnv(key) {
			logger.Warn("blocked environment variable", zap.String("env_var", key))
			continue
		}
		sanitized = append(sanitized, e)
	}
	return sanitized
}

// IsBlockedEnv reports whether key may never be passed to a child process.
func IsBlockedEnv(key string) bool {
	upperKey := strings.ToUpper(key)
	for _, prefix := range blockedEnvPrefixes {
		if strings.HasPrefix(upperKey, prefix) {
			return true
		}
	}
	return slices.Contains(blockedEnvExact, upperKey)
}
