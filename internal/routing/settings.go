// ABOUTME: Gateway settings derived from the reserved configuration entry
// ABOUTME: Replaced as a whole value with each snapshot

package routing

// DefaultSuffix marks tools published by the switchboard.
const DefaultSuffix = "_cs"

// Settings controls naming and switching for one aggregation pass.
type Settings struct {
	SwitchingEnabled bool
	Suffix           string
}

// DefaultSettings returns switching enabled with the default suffix.
func DefaultSettings() Settings {
	return Settings{SwitchingEnabled: true, Suffix: DefaultSuffix}
}
