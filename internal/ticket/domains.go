package ticket

import (
	"fmt"
	"strings"
)

// Domain keys.
const (
	DomainDungeon = "dungeon"
	DomainSlayer  = "slayer"
	DomainKuudra  = "kuudra"
)

// Domain describes one ticket category: which variants it accepts, whether
// variants carry a tier, which carrier role gets pinged, and how the channel
// is named. One generic creation routine consumes this table; there is no
// per-domain code.
type Domain struct {
	Key         string
	CarrierRole string
	Variants    []string
	MaxTier     int    // 0 for single-action domains
	NamePrefix  string // Prepended to the variant when building the channel name
}

// Domains returns the built-in domain table.
func Domains() map[string]Domain {
	return map[string]Domain{
		DomainDungeon: {
			Key:         DomainDungeon,
			CarrierRole: "Dungeon Carrier",
			Variants: []string{
				"f1", "f2", "f3", "f4", "f5", "f6", "f7",
				"m1", "m2", "m3", "m4", "m5", "m6", "m7",
			},
		},
		DomainSlayer: {
			Key:         DomainSlayer,
			CarrierRole: "Slayer Carrier",
			Variants:    []string{"zombie", "spider", "enderman", "wolf", "blaze", "vampire"},
			MaxTier:     5,
		},
		DomainKuudra: {
			Key:         DomainKuudra,
			CarrierRole: "Kuudra Carrier",
			Variants:    []string{"basic", "hot", "burning", "fiery", "infernal"},
			NamePrefix:  "kuudra-",
		},
	}
}

// CarrierRoles returns the set of roles authorized to close and finish
// tickets across all domains.
func CarrierRoles() map[string]struct{} {
	roles := make(map[string]struct{})
	for _, domain := range Domains() {
		roles[domain.CarrierRole] = struct{}{}
	}
	return roles
}

// hasVariant reports whether token is one of the domain's variants.
func (d Domain) hasVariant(token string) bool {
	for _, variant := range d.Variants {
		if variant == token {
			return true
		}
	}
	return false
}

// ChannelName validates the requested variant and tier against the domain
// and builds the grammar-conforming channel name.
func (d Domain) ChannelName(variant string, tier int) (string, error) {
	variant = strings.ToLower(variant)
	if !d.hasVariant(variant) {
		return "", fmt.Errorf("%w: %q is not a %s variant", ErrInvalidVariant, variant, d.Key)
	}

	if d.MaxTier == 0 {
		if tier != 0 {
			return "", fmt.Errorf("%w: %s tickets do not take a tier", ErrInvalidTier, d.Key)
		}
		return d.NamePrefix + variant, nil
	}

	if tier < 1 || tier > d.MaxTier {
		return "", fmt.Errorf("%w: tier %d outside 1-%d", ErrInvalidTier, tier, d.MaxTier)
	}
	return fmt.Sprintf("%s%s-t%d", d.NamePrefix, variant, tier), nil
}

// WelcomeLabel describes the requested work for the ticket welcome message.
func (d Domain) WelcomeLabel(variant string, tier int) string {
	variant = strings.ToLower(variant)
	if d.MaxTier == 0 {
		return strings.ToUpper(variant[:1]) + variant[1:]
	}
	return fmt.Sprintf("%s T%d", strings.ToUpper(variant[:1])+variant[1:], tier)
}
