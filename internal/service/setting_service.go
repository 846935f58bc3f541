package service

import (
	"context"
	"fmt"

	"github.com/arstate/FAFA-BIMBEL/internal/store"
	"github.com/rs/zerolog"
)

// SettingService manages the AI credential kept in the config slot.
type SettingService struct {
	store store.Store
	log   zerolog.Logger
}

func NewSettingService(s store.Store, log zerolog.Logger) *SettingService {
	return &SettingService{
		store: s,
		log:   log.With().Str("component", "setting_service").Logger(),
	}
}

// AICredential returns the configured API key, or "" when none is set.
func (s *SettingService) AICredential(ctx context.Context) (string, error) {
	snap, err := s.store.Read(ctx, store.Paths.AICredential())
	if err != nil {
		return "", fmt.Errorf("read ai credential: %w", err)
	}
	if !snap.Exists() {
		return "", nil
	}
	var key string
	if err := snap.Decode(&key); err != nil {
		return "", fmt.Errorf("decode ai credential: %w", err)
	}
	return key, nil
}

func (s *SettingService) SetAICredential(ctx context.Context, key string) error {
	if err := s.store.Write(ctx, store.Paths.AICredential(), key); err != nil {
		s.log.Error().Err(err).Msg("failed to store ai credential")
		return err
	}
	s.log.Info().Msg("AI credential updated")
	return nil
}

func (s *SettingService) ClearAICredential(ctx context.Context) error {
	if err := s.store.Remove(ctx, store.Paths.AICredential()); err != nil {
		s.log.Error().Err(err).Msg("failed to clear ai credential")
		return err
	}
	s.log.Info().Msg("AI credential cleared")
	return nil
}

// HasAICredential reports whether a key is configured without revealing it.
func (s *SettingService) HasAICredential(ctx context.Context) (bool, error) {
	key, err := s.AICredential(ctx)
	return key != "", err
}
