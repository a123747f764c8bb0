// Package ticket implements the carry-ticket lifecycle: a structural naming
// grammar identifying ticket channels, a data-driven domain table feeding one
// generic creation routine, and close/bulk-close/finish flows.
package ticket

import (
	"regexp"
	"strconv"
	"strings"
)

// ticketNameRegex is the structural naming contract for ticket channels.
// Any channel whose name fails this grammar is never treated as a ticket.
var ticketNameRegex = regexp.MustCompile(
	`^(?i)(?:kuudra-(?:basic|hot|burning|fiery|infernal)|` +
		`(?:zombie|spider|enderman|wolf|blaze|vampire)-t[1-5]|` +
		`f[1-7]|m[1-7])$`)

// Ref identifies a parsed ticket channel name.
type Ref struct {
	Domain  string // Domain key: "dungeon", "slayer" or "kuudra"
	Variant string // Variant token (floor, boss or kuudra tier)
	Tier    int    // Slayer tier 1-5, 0 for single-action domains
}

// IsTicketName reports whether name satisfies the ticket naming grammar.
func IsTicketName(name string) bool {
	return ticketNameRegex.MatchString(name)
}

// Parse validates name against the grammar and decomposes it.
func Parse(name string) (Ref, bool) {
	if !ticketNameRegex.MatchString(name) {
		return Ref{}, false
	}

	lower := strings.ToLower(name)
	switch {
	case strings.HasPrefix(lower, "kuudra-"):
		return Ref{Domain: DomainKuudra, Variant: strings.TrimPrefix(lower, "kuudra-")}, true
	case strings.HasPrefix(lower, "f") || strings.HasPrefix(lower, "m"):
		return Ref{Domain: DomainDungeon, Variant: lower}, true
	default:
		// Slayer: "<boss>-t<N>"
		boss, tierToken, _ := strings.Cut(lower, "-t")
		tier, _ := strconv.Atoi(tierToken)
		return Ref{Domain: DomainSlayer, Variant: boss, Tier: tier}, true
	}
}
