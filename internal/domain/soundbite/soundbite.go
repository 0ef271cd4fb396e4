// Package soundbite provides the Soundbite domain entity.
package soundbite

// Tier represents the intensity tier of a soundbite.
type Tier string

const (
	TierSpark Tier = "spark" // Lightest tier, quick reframes
	TierFlame Tier = "flame" // Mid tier
	TierEmber Tier = "ember" // Deepest tier, longer holds
)

// Valid reports whether the tier is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierSpark, TierFlame, TierEmber:
		return true
	default:
		return false
	}
}

// Soundbite represents a single playable audio unit.
// Immutable once loaded into a queue.
type Soundbite struct {
	ID       string // Asset UUID
	Title    string // Display title
	AudioURL string // Opaque source locator, resolved by the media transport
	Tier     Tier   // Intensity tier
	PillarID string // Therapeutic pillar (grouping key)
	ThemeID  string // Optional sub-grouping
	Code     string // Short content code (e.g. "SPK-014")
}

// Playable reports whether the soundbite has a resolvable audio source.
func (s *Soundbite) Playable() bool {
	return s.AudioURL != ""
}
