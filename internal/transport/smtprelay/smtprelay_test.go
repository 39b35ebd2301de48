package smtprelay

import (
	"context"
	"errors"
	"testing"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.io/infrasutra/databoxmail/internal/testutil"
	"github.io/infrasutra/databoxmail/internal/transport"
)

const rawMessage = "Subject: hello\r\nFrom: forwarder@example.com\r\nTo: archive@example.com\r\n\r\nbody\r\n"

func TestRelay_SendsOverOneSession(t *testing.T) {
	relay := testutil.NewSMTPRelay(t, testutil.RelayConfig{})
	ctx := context.Background()

	r := New(Config{Addr: relay.Addr, HelloName: "databoxmail.test"})
	require.NoError(t, r.Open(ctx))

	require.NoError(t, r.Send(ctx, "forwarder@example.com", "archive@example.com", []byte(rawMessage)))
	require.NoError(t, r.Send(ctx, "forwarder@example.com", "other@example.com", []byte(rawMessage)))
	require.NoError(t, r.Close())

	msgs := relay.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "forwarder@example.com", msgs[0].From)
	assert.Equal(t, []string{"archive@example.com"}, msgs[0].To)
	assert.Contains(t, string(msgs[0].Data), "Subject: hello")
	assert.Equal(t, []string{"other@example.com"}, msgs[1].To)
	assert.Equal(t, 1, relay.Sessions())
}

func TestRelay_Auth(t *testing.T) {
	relay := testutil.NewSMTPRelay(t, testutil.RelayConfig{Username: "user", Password: "secret"})
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		r := New(Config{Addr: relay.Addr, Username: "user", Password: "secret"})
		require.NoError(t, r.Open(ctx))
		defer r.Close()

		assert.NoError(t, r.Send(ctx, "forwarder@example.com", "archive@example.com", []byte(rawMessage)))
	})

	t.Run("wrong password", func(t *testing.T) {
		r := New(Config{Addr: relay.Addr, Username: "user", Password: "nope"})
		assert.Error(t, r.Open(ctx))
	})

	t.Run("missing credentials", func(t *testing.T) {
		r := New(Config{Addr: relay.Addr})
		require.NoError(t, r.Open(ctx))
		defer r.Close()

		err := r.Send(ctx, "forwarder@example.com", "archive@example.com", []byte(rawMessage))
		assert.Error(t, err)
	})
}

func TestRelay_RejectedRecipient(t *testing.T) {
	relay := testutil.NewSMTPRelay(t, testutil.RelayConfig{RejectRecipients: []string{"bad@example.com"}})
	ctx := context.Background()

	r := New(Config{Addr: relay.Addr})
	require.NoError(t, r.Open(ctx))
	defer r.Close()

	err := r.Send(ctx, "forwarder@example.com", "bad@example.com", []byte(rawMessage))
	require.Error(t, err)

	var smtpErr *smtp.SMTPError
	require.True(t, errors.As(err, &smtpErr))
	assert.Equal(t, 550, smtpErr.Code)
	assert.Empty(t, relay.Messages())
}

func TestRelay_SendBeforeOpen(t *testing.T) {
	r := New(Config{Addr: "127.0.0.1:1"})
	err := r.Send(context.Background(), "a@example.com", "b@example.com", []byte(rawMessage))
	assert.ErrorIs(t, err, transport.ErrNotOpen)
	assert.NoError(t, r.Close())
}

func TestRelay_ConnectionRefused(t *testing.T) {
	r := New(Config{Addr: "127.0.0.1:1"})
	assert.Error(t, r.Open(context.Background()))
}
