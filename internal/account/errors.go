package account

import "fmt"

// ConfigError means no credentials exist for a handle and a publish was
// about to be attempted. Fatal to the invocation, not the process.
type ConfigError struct {
	Handle string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("no credentials for handle %q: add them to the accounts file or set X_ACCESS_TOKEN", e.Handle)
}
