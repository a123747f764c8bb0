package ticket_test

import (
	"testing"

	"github.com/skysanctuary/warden/internal/ticket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTicketName(t *testing.T) {
	t.Parallel()

	valid := []string{
		"kuudra-hot",
		"kuudra-basic",
		"kuudra-infernal",
		"f1", "f3", "f7",
		"m1", "m7",
		"zombie-t4",
		"vampire-t1",
		"blaze-t5",
		"KUUDRA-HOT", // grammar is case-insensitive
		"Zombie-T4",
	}
	for _, name := range valid {
		assert.True(t, ticket.IsTicketName(name), "%q should match", name)
	}

	invalid := []string{
		"kuudra-hot-extra",
		"kuudra-",
		"f8", "f0",
		"m0", "m8",
		"zombie-t6",
		"zombie-t0",
		"zombie",
		"random-channel",
		"giveaway-steve",
		"application-steve",
		"",
	}
	for _, name := range invalid {
		assert.False(t, ticket.IsTicketName(name), "%q should not match", name)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want ticket.Ref
	}{
		{name: "kuudra-hot", want: ticket.Ref{Domain: ticket.DomainKuudra, Variant: "hot"}},
		{name: "f3", want: ticket.Ref{Domain: ticket.DomainDungeon, Variant: "f3"}},
		{name: "m7", want: ticket.Ref{Domain: ticket.DomainDungeon, Variant: "m7"}},
		{name: "zombie-t4", want: ticket.Ref{Domain: ticket.DomainSlayer, Variant: "zombie", Tier: 4}},
		{name: "ENDERMAN-T2", want: ticket.Ref{Domain: ticket.DomainSlayer, Variant: "enderman", Tier: 2}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ref, ok := ticket.Parse(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, ref)
		})
	}

	_, ok := ticket.Parse("not-a-ticket")
	assert.False(t, ok)
}

func TestDomainChannelName(t *testing.T) {
	t.Parallel()

	domains := ticket.Domains()

	tests := []struct {
		testName string
		domain   string
		variant  string
		tier     int
		want     string
		wantErr  error
	}{
		{testName: "dungeon floor", domain: ticket.DomainDungeon, variant: "f5", want: "f5"},
		{testName: "dungeon master mode", domain: ticket.DomainDungeon, variant: "M3", want: "m3"},
		{testName: "slayer with tier", domain: ticket.DomainSlayer, variant: "zombie", tier: 4, want: "zombie-t4"},
		{testName: "kuudra prefixed", domain: ticket.DomainKuudra, variant: "infernal", want: "kuudra-infernal"},
		{testName: "unknown variant", domain: ticket.DomainSlayer, variant: "dragon", tier: 1, wantErr: ticket.ErrInvalidVariant},
		{testName: "tier out of range", domain: ticket.DomainSlayer, variant: "zombie", tier: 6, wantErr: ticket.ErrInvalidTier},
		{testName: "tier on single-action domain", domain: ticket.DomainKuudra, variant: "hot", tier: 2, wantErr: ticket.ErrInvalidTier},
		{testName: "missing tier", domain: ticket.DomainSlayer, variant: "zombie", wantErr: ticket.ErrInvalidTier},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.testName, func(t *testing.T) {
			t.Parallel()

			name, err := domains[tt.domain].ChannelName(tt.variant, tt.tier)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, name)

			// Every generated name satisfies the grammar.
			assert.True(t, ticket.IsTicketName(name))
		})
	}
}
