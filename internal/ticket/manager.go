package ticket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrUnknownDomain         = errors.New("unknown ticket domain")
	ErrInvalidVariant        = errors.New("invalid ticket variant")
	ErrInvalidTier           = errors.New("invalid ticket tier")
	ErrNotTicketChannel      = errors.New("channel name does not match the ticket grammar")
	ErrNoPendingConfirmation = errors.New("no pending close-all confirmation for this actor")
	ErrConfirmationExpired   = errors.New("close-all confirmation has expired")
	ErrNoRatingSession       = errors.New("no active rating session for this channel")
)

// ConfirmationTTL is how long a close-all confirmation stays actionable.
const ConfirmationTTL = 30 * time.Second

// ChannelService is the outbound channel mutation surface, implemented by
// the Discord presentation layer.
type ChannelService interface {
	// CreateRestrictedChannel creates a text channel visible only to the
	// opener, the given roles and administrators, returning its ID.
	CreateRestrictedChannel(ctx context.Context, name string, openerID uint64, allowRoles []string) (uint64, error)
	DeleteChannel(ctx context.Context, channelID uint64) error
	SendMessage(ctx context.Context, channelID uint64, content string) error
	// RoleMention ensures the named role exists and returns its mention string.
	RoleMention(ctx context.Context, name string) (string, error)
	// ListChannels returns all text channels in the guild.
	ListChannels(ctx context.Context) ([]ChannelInfo, error)
}

// ChannelInfo identifies a guild text channel.
type ChannelInfo struct {
	ID   uint64
	Name string
}

// RatingRecorder records carrier ratings, implemented by the progression
// ledger.
type RatingRecorder interface {
	RecordRating(ctx context.Context, userID uint64, stars int) error
}

// closeAllConfirmation is a pending bulk-close awaiting confirmation from the
// administrator who initiated it.
type closeAllConfirmation struct {
	actorID  uint64
	deadline time.Time
}

// ratingSession tracks an in-flight rating collection for a finished ticket.
// One rating is accepted per session; the session ends with the channel.
type ratingSession struct {
	carrierID uint64
}

// Manager drives the ticket lifecycle. Tickets have no durable state of
// their own: a ticket exists exactly as long as a channel matching the
// naming grammar exists.
type Manager struct {
	channels ChannelService
	ratings  RatingRecorder
	domains  map[string]Domain
	logger   *zap.Logger
	now      func() time.Time

	mu             sync.Mutex
	confirmations  map[uint64]closeAllConfirmation
	ratingSessions map[uint64]ratingSession
}

// NewManager creates a ticket lifecycle manager.
func NewManager(channels ChannelService, ratings RatingRecorder, logger *zap.Logger) *Manager {
	return &Manager{
		channels:       channels,
		ratings:        ratings,
		domains:        Domains(),
		logger:         logger.Named("tickets"),
		now:            time.Now,
		confirmations:  make(map[uint64]closeAllConfirmation),
		ratingSessions: make(map[uint64]ratingSession),
	}
}

// Open validates the request against the domain table and creates the ticket
// channel with its welcome message sequence. Returns the new channel's ID and
// name.
func (m *Manager) Open(ctx context.Context, openerID uint64, domainKey, variant string, tier int) (uint64, string, error) {
	domain, ok := m.domains[domainKey]
	if !ok {
		return 0, "", fmt.Errorf("%w: %q", ErrUnknownDomain, domainKey)
	}

	name, err := domain.ChannelName(variant, tier)
	if err != nil {
		return 0, "", err
	}

	channelID, err := m.channels.CreateRestrictedChannel(ctx, name, openerID, []string{domain.CarrierRole})
	if err != nil {
		return 0, "", fmt.Errorf("failed to create ticket channel: %w", err)
	}

	mention, err := m.channels.RoleMention(ctx, domain.CarrierRole)
	if err != nil {
		return 0, "", fmt.Errorf("failed to resolve carrier role: %w", err)
	}

	opener := fmt.Sprintf("<@%d>", openerID)
	messages := []string{
		fmt.Sprintf("%s %s opened a ticket: **%s**", mention, opener, domain.WelcomeLabel(variant, tier)),
		fmt.Sprintf("Hello %s! If you no longer need the carry, use `/close`\n"+
			"Please do not close the ticket if a carrier has responded to this ticket.\n"+
			"You can check a user's rating with `/rating`", opener),
	}
	for _, content := range messages {
		if err := m.channels.SendMessage(ctx, channelID, content); err != nil {
			return 0, "", fmt.Errorf("failed to post welcome message: %w", err)
		}
	}

	m.logger.Info("Opened ticket",
		zap.String("channel", name),
		zap.Uint64("opener", openerID))

	return channelID, name, nil
}

// Close deletes a ticket channel. The channel name is re-validated against
// the grammar first: close actions on non-ticket channels are rejected.
func (m *Manager) Close(ctx context.Context, channelID uint64, channelName string) error {
	if !IsTicketName(channelName) {
		return fmt.Errorf("%w: %q", ErrNotTicketChannel, channelName)
	}

	if err := m.channels.DeleteChannel(ctx, channelID); err != nil {
		return fmt.Errorf("failed to delete ticket channel: %w", err)
	}

	m.logger.Info("Closed ticket", zap.String("channel", channelName))
	return nil
}

// RequestCloseAll registers a pending bulk-close confirmation bound to the
// initiating administrator. The confirmation expires after ConfirmationTTL.
func (m *Manager) RequestCloseAll(actorID uint64) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	deadline := m.now().Add(ConfirmationTTL)
	m.confirmations[actorID] = closeAllConfirmation{actorID: actorID, deadline: deadline}
	return deadline
}

// ConfirmCloseAll executes a pending bulk-close. Only the administrator who
// initiated it holds a confirmation; an expired confirmation is inert.
// Returns the number of ticket channels deleted; per-channel failures are
// logged and skipped.
func (m *Manager) ConfirmCloseAll(ctx context.Context, actorID uint64) (int, error) {
	m.mu.Lock()
	confirmation, ok := m.confirmations[actorID]
	delete(m.confirmations, actorID)
	m.mu.Unlock()

	if !ok {
		return 0, ErrNoPendingConfirmation
	}
	if m.now().After(confirmation.deadline) {
		return 0, ErrConfirmationExpired
	}

	channels, err := m.channels.ListChannels(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list channels: %w", err)
	}

	closed := 0
	for _, channel := range channels {
		if !IsTicketName(channel.Name) {
			continue
		}
		if err := m.channels.DeleteChannel(ctx, channel.ID); err != nil {
			m.logger.Warn("Failed to delete ticket during bulk close",
				zap.String("channel", channel.Name),
				zap.Error(err))
			continue
		}
		closed++
	}

	m.logger.Info("Bulk-closed tickets",
		zap.Uint64("actor", actorID),
		zap.Int("closed", closed))

	return closed, nil
}

// CancelCloseAll discards a pending bulk-close confirmation.
func (m *Manager) CancelCloseAll(actorID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.confirmations[actorID]; !ok {
		return ErrNoPendingConfirmation
	}
	delete(m.confirmations, actorID)
	return nil
}

// StartRating opens a rating session for a finished ticket. The channel name
// must satisfy the grammar.
func (m *Manager) StartRating(channelID uint64, channelName string, carrierID uint64) error {
	if !IsTicketName(channelName) {
		return fmt.Errorf("%w: %q", ErrNotTicketChannel, channelName)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ratingSessions[channelID] = ratingSession{carrierID: carrierID}
	return nil
}

// SubmitRating records exactly one rating for the session's carrier, then
// deletes the ticket channel. A second submission for the same session is
// rejected: the session is consumed before any side effects.
func (m *Manager) SubmitRating(ctx context.Context, channelID uint64, stars int) (uint64, error) {
	m.mu.Lock()
	session, ok := m.ratingSessions[channelID]
	delete(m.ratingSessions, channelID)
	m.mu.Unlock()

	if !ok {
		return 0, ErrNoRatingSession
	}

	if err := m.ratings.RecordRating(ctx, session.carrierID, stars); err != nil {
		return 0, fmt.Errorf("failed to record rating: %w", err)
	}

	if err := m.channels.DeleteChannel(ctx, channelID); err != nil {
		return 0, fmt.Errorf("failed to delete finished ticket: %w", err)
	}

	return session.carrierID, nil
}
