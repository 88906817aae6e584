// Package config provides configuration loading for skilld.
package config

import (
	"fmt"
	"time"
)

// Secret is a string whose value never appears in logs or formatted
// output. Use Value() only at the point of use.
type Secret string

// String implements fmt.Stringer. Always returns a redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// IsSet reports whether the secret has a value.
func (s Secret) IsSet() bool { return s != "" }

// Value returns the underlying secret value.
func (s Secret) Value() string { return string(s) }

// Duration is a time.Duration that unmarshals from strings like "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }
