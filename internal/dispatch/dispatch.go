// Package dispatch forwards every stored message that is not yet in the ledger
// through a single transport session, committing each id only after its send
// succeeded.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.io/infrasutra/databoxmail/internal/compose"
	"github.io/infrasutra/databoxmail/internal/databox"
	"github.io/infrasutra/databoxmail/internal/transport"
)

// Store is the read side of the message store.
type Store interface {
	Accounts(ctx context.Context) ([]databox.Account, error)
	MessageIDs(ctx context.Context, account string) ([]int64, error)
	IsSent(ctx context.Context, account string, id int64) (bool, error)
	Message(ctx context.Context, account string, id int64) (*databox.Message, error)
}

type Ledger interface {
	Contains(id int64) bool
	Commit(id int64) error
}

type Composer interface {
	Compose(account databox.Account, msg *databox.Message, isSent bool, recipientHeader string) (*compose.Email, error)
}

type accountState int

const (
	stateIdle accountState = iota
	stateIterating
	stateDone
)

func (s accountState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateIterating:
		return "iterating"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

type Summary struct {
	RunID    string
	Accounts int
	Sent     int
	Skipped  int
}

type Dispatcher struct {
	Store     Store
	Ledger    Ledger
	Composer  Composer
	Transport transport.Transport

	// Sender is the envelope sender. When empty the From header address is
	// used.
	Sender            string
	RecipientSent     string
	RecipientReceived string
	Logger            *slog.Logger
}

// Run processes all accounts once. The first store, compose, transport or
// ledger error aborts the run; the partial summary is returned with it.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	logger := d.logger().With("run_id", summary.RunID, "transport", d.Transport.Name())

	accounts, err := d.Store.Accounts(ctx)
	if err != nil {
		return summary, fmt.Errorf("list accounts: %w", err)
	}

	if err := d.Transport.Open(ctx); err != nil {
		return summary, fmt.Errorf("open transport: %w", err)
	}
	defer func() {
		if err := d.Transport.Close(); err != nil {
			logger.Warn("close transport", "error", err)
		}
	}()
	logger.Info("run started", "accounts", len(accounts))

	for _, account := range accounts {
		if err := d.runAccount(ctx, logger, account, &summary); err != nil {
			logger.Error("run aborted", "account", account.Username, "sent", summary.Sent, "error", err)
			return summary, err
		}
		summary.Accounts++
	}

	logger.Info("run finished", "accounts", summary.Accounts, "sent", summary.Sent, "skipped", summary.Skipped)
	return summary, nil
}

func (d *Dispatcher) runAccount(ctx context.Context, logger *slog.Logger, account databox.Account, summary *Summary) error {
	logger = logger.With("account", account.Username)
	state := stateIdle
	logger.Debug("account state", "state", state)

	ids, err := d.Store.MessageIDs(ctx, account.Username)
	if err != nil {
		return fmt.Errorf("list messages of %s: %w", account.Username, err)
	}
	state = stateIterating
	logger.Debug("account state", "state", state, "messages", len(ids))

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("account %s: %w", account.Username, err)
		}
		if d.Ledger.Contains(id) {
			summary.Skipped++
			logger.Debug("message already forwarded", "message_id", id)
			continue
		}
		if err := d.forward(ctx, logger, account, id); err != nil {
			return fmt.Errorf("account %s message %d: %w", account.Username, id, err)
		}
		summary.Sent++
	}

	state = stateDone
	logger.Debug("account state", "state", state)
	return nil
}

func (d *Dispatcher) forward(ctx context.Context, logger *slog.Logger, account databox.Account, id int64) error {
	isSent, err := d.Store.IsSent(ctx, account.Username, id)
	if err != nil {
		return fmt.Errorf("classify message: %w", err)
	}
	msg, err := d.Store.Message(ctx, account.Username, id)
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}

	recipient := d.RecipientReceived
	if isSent {
		recipient = d.RecipientSent
	}

	email, err := d.Composer.Compose(account, msg, isSent, recipient)
	if err != nil {
		return fmt.Errorf("compose message: %w", err)
	}
	if email.DateFallback {
		logger.Warn("message has no date, using current time", "message_id", id)
	}
	raw, err := email.Bytes()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	from := d.Sender
	if from == "" {
		from = email.From.Address
	}
	to := email.Envelope()
	if err := d.Transport.Send(ctx, from, to, raw); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	// Delivered but unconfirmed if this fails; the next run sends it again.
	if err := d.Ledger.Commit(id); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}

	logger.Info("message forwarded", "message_id", id, "sent", isSent, "to", to, "bytes", len(raw))
	return nil
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
