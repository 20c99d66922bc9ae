package telegram

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"
)

func TestClassify(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.NoError(t, classify(nil))
	})

	t.Run("blocked bot is permanent", func(t *testing.T) {
		err := classify(tele.ErrBlockedByUser)
		require.Error(t, err)
		assert.True(t, IsPermanent(err))
	})

	t.Run("bad request is permanent", func(t *testing.T) {
		apiErr := &tele.Error{Code: 400, Description: "Bad Request: chat not found"}
		err := classify(apiErr)
		require.Error(t, err)
		assert.True(t, IsPermanent(err))
	})

	t.Run("server error is recoverable", func(t *testing.T) {
		apiErr := &tele.Error{Code: 502, Description: "Bad Gateway"}
		err := classify(apiErr)
		require.Error(t, err)
		assert.False(t, IsPermanent(err))
	})

	t.Run("flood control is recoverable with a wait hint", func(t *testing.T) {
		flood := tele.FloodError{
			RetryAfter: 17,
		}
		err := classify(flood)
		require.Error(t, err)
		assert.False(t, IsPermanent(err))
		assert.Equal(t, 17*time.Second, RetryAfter(err))
	})

	t.Run("transport errors are recoverable", func(t *testing.T) {
		err := classify(errors.New("dial tcp: connection refused"))
		require.Error(t, err)
		assert.False(t, IsPermanent(err))
		assert.Zero(t, RetryAfter(err))
	})
}

func TestSendErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &SendError{Err: inner, Permanent: true}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "boom", err.Error())
}
