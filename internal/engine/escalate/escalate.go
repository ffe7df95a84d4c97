// Package escalate implements the one-time "upgrade to automatic" offer
// for scenes the user consistently accepts.
//
// The coordinator watches trigger histories after every feedback event.
// A scene with an unbroken run of acceptances earns a single offer to
// switch from suggestion-based to fully automatic handling; a rejected
// offer is remembered and never repeated for that scene.
package escalate

import (
	"context"
	"log/slog"

	"github.com/runger/nudge/internal/engine/scene"
	"github.com/runger/nudge/internal/engine/trigger"
)

// Offer is the escalation event delivered to the notification surface.
type Offer struct {
	Category    scene.Category `json:"scene_category"`
	AcceptCount int            `json:"accept_count"`
}

// Notifier is the external prompt surface that presents an escalation
// offer to the user. The response comes back via HandleResponse.
type Notifier interface {
	OfferAutoMode(ctx context.Context, offer Offer)
}

// AutoModeRegistrar is the external collaborator that runs scenes in
// unattended mode once the user accepts an offer.
type AutoModeRegistrar interface {
	EnableAutoMode(ctx context.Context, category scene.Category) error
}

// Config holds the escalation thresholds.
type Config struct {
	// AcceptThreshold is the unbroken acceptance count required before
	// an offer is emitted. Default: 5.
	AcceptThreshold int
}

// DefaultConfig returns the default escalation configuration.
func DefaultConfig() Config {
	return Config{AcceptThreshold: 5}
}

// Coordinator emits escalation offers and applies user responses.
type Coordinator struct {
	cfg       Config
	histories *trigger.HistoryStore
	notifier  Notifier
	registrar AutoModeRegistrar
	logger    *slog.Logger
}

// NewCoordinator creates a coordinator over the given history store.
// notifier and registrar may be nil when no surface is wired; offers are
// then only recorded in the history.
func NewCoordinator(cfg Config, histories *trigger.HistoryStore, notifier Notifier, registrar AutoModeRegistrar, logger *slog.Logger) *Coordinator {
	if cfg.AcceptThreshold < 1 {
		cfg.AcceptThreshold = DefaultConfig().AcceptThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:       cfg,
		histories: histories,
		notifier:  notifier,
		registrar: registrar,
		logger:    logger,
	}
}

// Check inspects the history for category after a feedback event and
// emits an offer when the scene qualifies. Returns the offer, or nil.
//
// A scene qualifies when every recorded feedback is an acceptance (at
// least AcceptThreshold of them, zero ignores, zero cancels), no offer
// has been emitted yet, and no prior offer was rejected.
func (c *Coordinator) Check(ctx context.Context, category scene.Category) *Offer {
	h := c.histories.Get(category)

	if h.AcceptCount < c.cfg.AcceptThreshold {
		return nil
	}
	if h.IgnoreCount != 0 || h.CancelCount != 0 {
		return nil
	}
	if h.AutoUpgradeOffered || h.AutoUpgradeRejectedMs != nil {
		return nil
	}

	offer := &Offer{Category: category, AcceptCount: h.AcceptCount}
	c.histories.MarkUpgradeOffered(ctx, category)

	c.logger.Info("offering auto mode",
		"scene", category,
		"accept_count", h.AcceptCount,
	)
	if c.notifier != nil {
		c.notifier.OfferAutoMode(ctx, *offer)
	}
	return offer
}

// HandleResponse applies the user's answer to an escalation offer.
// Acceptance enables unattended mode for the scene through the
// registrar; rejection is persisted so the offer never recurs.
func (c *Coordinator) HandleResponse(ctx context.Context, category scene.Category, accepted bool, nowMs int64) error {
	if !accepted {
		c.histories.MarkUpgradeRejected(ctx, category, nowMs)
		c.logger.Info("auto mode offer rejected", "scene", category)
		return nil
	}

	c.logger.Info("auto mode offer accepted", "scene", category)
	if c.registrar == nil {
		return nil
	}
	return c.registrar.EnableAutoMode(ctx, category)
}
