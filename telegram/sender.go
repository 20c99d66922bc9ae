// Package telegram adapts telebot to the sender interfaces the delivery
// worker and mission tracker depend on.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"
)

// SendError wraps a delivery failure with its retry classification.
type SendError struct {
	Err       error
	Permanent bool
}

func (e *SendError) Error() string {
	return e.Err.Error()
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// IsPermanent reports whether err is a delivery failure that will never
// succeed on retry (blocked bot, deleted account, malformed message).
func IsPermanent(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr) && sendErr.Permanent
}

// Sender delivers messages through the Telegram Bot API.
type Sender struct {
	bot *tele.Bot
}

// NewSender creates a sender with the given bot token. The bot is used for
// outbound calls only; no update polling is started.
func NewSender(token string) (*Sender, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: false,
		Client:  nil,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Sender{bot: bot}, nil
}

// NewSenderWithBot wraps an existing bot instance.
func NewSenderWithBot(bot *tele.Bot) *Sender {
	return &Sender{bot: bot}
}

// SendMessage sends a text message.
func (s *Sender) SendMessage(ctx context.Context, telegramID int64, text, parseMode string) error {
	_, err := s.bot.Send(tele.ChatID(telegramID), text, &tele.SendOptions{
		ParseMode: parseMode,
	})
	return classify(err)
}

// SendPhoto sends a photo by URL with a caption.
func (s *Sender) SendPhoto(ctx context.Context, telegramID int64, photoURL, caption, parseMode string) error {
	photo := &tele.Photo{
		File:    tele.FromURL(photoURL),
		Caption: caption,
	}
	_, err := s.bot.Send(tele.ChatID(telegramID), photo, &tele.SendOptions{
		ParseMode: parseMode,
	})
	return classify(err)
}

// IsSubscribed reports whether the user is a member, administrator or
// owner of the given channel.
func (s *Sender) IsSubscribed(ctx context.Context, telegramID, channelID int64, channelUsername string) (bool, error) {
	var chat *tele.Chat
	if channelID != 0 {
		chat = &tele.Chat{ID: channelID}
	} else {
		resolved, err := s.bot.ChatByUsername(channelUsername)
		if err != nil {
			return false, fmt.Errorf("failed to resolve channel %q: %w", channelUsername, err)
		}
		chat = resolved
	}

	member, err := s.bot.ChatMemberOf(chat, &tele.User{ID: telegramID})
	if err != nil {
		// A user the channel has never seen comes back as an API error.
		var apiErr *tele.Error
		if errors.As(err, &apiErr) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check channel membership: %w", err)
	}

	switch member.Role {
	case tele.Creator, tele.Administrator, tele.Member:
		return true, nil
	default:
		return false, nil
	}
}

// classify maps telebot errors onto the retry taxonomy: forbidden and
// bad-request responses are permanent, flood control and transport errors
// are recoverable.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return &SendError{Err: err, Permanent: false}
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		permanent := apiErr.Code == 403 || apiErr.Code == 400
		return &SendError{Err: err, Permanent: permanent}
	}

	return &SendError{Err: err, Permanent: false}
}

// RetryAfter extracts the flood-control wait hint, or zero.
func RetryAfter(err error) time.Duration {
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return time.Duration(floodErr.RetryAfter) * time.Second
	}
	return 0
}
