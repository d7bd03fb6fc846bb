// ABOUTME: Reversible mapping between canonical tool names and displayed names
// ABOUTME: The only place the disambiguation suffix is added or stripped

package routing

import "strings"

// Namer maps canonical names to displayed names and back.
type Namer struct {
	suffix   string
	reserved string
}

// NewNamer returns a Namer for the suffix. The reserved name is never suffixed.
func NewNamer(suffix, reserved string) Namer {
	return Namer{suffix: suffix, reserved: reserved}
}

// Suffix returns the configured suffix.
func (n Namer) Suffix() string { return n.suffix }

// Display returns the name shown to callers.
func (n Namer) Display(canonical string) string {
	if n.suffix == "" || canonical == n.reserved || strings.HasSuffix(canonical, n.suffix) {
		return canonical
	}
	return canonical + n.suffix
}

// Canonical strips the suffix from a displayed name.
func (n Namer) Canonical(display string) string {
	if n.suffix == "" || display == n.reserved {
		return display
	}
	return strings.TrimSuffix(display, n.suffix)
}
