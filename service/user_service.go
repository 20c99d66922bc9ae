package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	log "github.com/sirupsen/logrus"

	"predmarket/config"
	"predmarket/events"
	"predmarket/models"
)

// UserService owns registration, profiles and referral activation.
type UserService struct {
	uowFactory UnitOfWorkFactory
	cfg        *config.Config
}

// NewUserService creates a user service.
func NewUserService(uowFactory UnitOfWorkFactory, cfg *config.Config) *UserService {
	return &UserService{
		uowFactory: uowFactory,
		cfg:        cfg,
	}
}

// GetOrCreate returns the user for a Telegram id, registering them with the
// starting balance and a fresh referral code on first contact. Profile
// fields are refreshed on every call.
func (s *UserService) GetOrCreate(ctx context.Context, telegramID int64, username, firstName, photoURL string) (*models.User, error) {
	if telegramID == 0 {
		return nil, fmt.Errorf("%w: telegram id is required", ErrInvalidInput)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	user, err := uow.UserRepository().GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}

	if user != nil {
		if user.Username != username || user.FirstName != firstName || user.PhotoURL != photoURL {
			if err := uow.UserRepository().UpdateProfile(ctx, user.ID, username, firstName, photoURL); err != nil {
				return nil, err
			}
			user.Username = username
			user.FirstName = firstName
			user.PhotoURL = photoURL
		}
		if err := uow.Commit(ctx); err != nil {
			return nil, err
		}
		return user, nil
	}

	code, err := generateReferralCode()
	if err != nil {
		return nil, err
	}
	user = &models.User{
		TelegramID:   telegramID,
		Username:     username,
		FirstName:    firstName,
		PhotoURL:     photoURL,
		PredBalance:  s.cfg.StartingPredBalance,
		ReferralCode: &code,
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.UserRegisteredEvent{
		UserID:     user.ID,
		TelegramID: telegramID,
	})

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"userID":     user.ID,
		"telegramID": telegramID,
	}).Info("User registered")

	return user, nil
}

// GetUser returns a user by internal id.
func (s *UserService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return user, nil
}

// ActivateReferral links a user to a referrer exactly once and credits both
// sides the configured PRED bonus. Concurrent activations race on the
// guarded referrer update; exactly one wins.
func (s *UserService) ActivateReferral(ctx context.Context, userID int64, code string) error {
	if code == "" {
		return fmt.Errorf("%w: referral code is required", ErrInvalidInput)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if user.ReferrerID != nil {
		return ErrAlreadyReferred
	}

	referrer, err := uow.UserRepository().GetByReferralCode(ctx, code)
	if err != nil {
		return err
	}
	if referrer == nil {
		return fmt.Errorf("%w: unknown referral code", ErrNotFound)
	}
	if referrer.ID == userID {
		return ErrSelfReferral
	}

	linked, err := uow.UserRepository().SetReferrer(ctx, userID, referrer.ID)
	if err != nil {
		return err
	}
	if !linked {
		return ErrAlreadyReferred
	}

	bonus := s.cfg.ReferralBonusPred
	if err := creditBalance(ctx, uow, userID, models.CurrencyPRED, bonus,
		models.TransactionTypeReferral, "Referral bonus", &referrer.ID); err != nil {
		return err
	}
	if err := creditBalance(ctx, uow, referrer.ID, models.CurrencyPRED, bonus,
		models.TransactionTypeReferral, "Referral bonus for inviting a friend", &user.ID); err != nil {
		return err
	}

	if err := uow.Commit(ctx); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"userID":     userID,
		"referrerID": referrer.ID,
	}).Info("Referral activated")

	return nil
}

func generateReferralCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate referral code: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
