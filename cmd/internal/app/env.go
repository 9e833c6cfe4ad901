package app

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
)

var envRefRE = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or "" when unset.
func expandEnvVars(s string) string {
	return envRefRE.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envRefRE.FindStringSubmatch(match)[1])
	})
}

// loadDotEnv loads path into the environment without overriding variables that
// are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !isNotExist(err) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
