package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.io/infrasutra/databoxmail/internal/databox"
)

// eventTimeLayout matches how the sync layer writes event times; the
// fractional part is optional when parsing.
const eventTimeLayout = "2006-01-02 15:04:05.999999"

type Store struct {
	db  *sql.DB
	loc *time.Location
}

func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	inMemory := false
	if trimmed == "" {
		trimmed = ":memory:"
		inMemory = true
	}
	if strings.Contains(trimmed, "mode=memory") || trimmed == ":memory:" || trimmed == "file::memory:" {
		inMemory = true
	}
	db, err := sql.Open("sqlite", trimmed)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if !inMemory {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	return &Store{db: db, loc: time.Local}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SetLocation sets the zone timestamps are returned in.
func (s *Store) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
            username TEXT PRIMARY KEY,
            name TEXT NOT NULL DEFAULT '',
            created_at INTEGER NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            dm_id INTEGER NOT NULL,
            account TEXT NOT NULL,
            is_sent INTEGER NOT NULL,
            dm_type TEXT NOT NULL DEFAULT '',
            annotation TEXT NOT NULL DEFAULT '',
            sender TEXT NOT NULL DEFAULT '',
            sender_address TEXT NOT NULL DEFAULT '',
            recipient TEXT NOT NULL DEFAULT '',
            recipient_address TEXT NOT NULL DEFAULT '',
            sender_ident TEXT NOT NULL DEFAULT '',
            sender_ref_number TEXT NOT NULL DEFAULT '',
            recipient_ident TEXT NOT NULL DEFAULT '',
            recipient_ref_number TEXT NOT NULL DEFAULT '',
            to_hands TEXT NOT NULL DEFAULT '',
            legal_title_law TEXT NOT NULL DEFAULT '',
            legal_title_year TEXT NOT NULL DEFAULT '',
            legal_title_sect TEXT NOT NULL DEFAULT '',
            legal_title_par TEXT NOT NULL DEFAULT '',
            legal_title_point TEXT NOT NULL DEFAULT '',
            delivery_time INTEGER,
            acceptance_time INTEGER,
            status INTEGER NOT NULL DEFAULT 0,
            verification_attempted INTEGER NOT NULL DEFAULT 0,
            message_valid INTEGER NOT NULL DEFAULT 0,
            cert_not_before INTEGER,
            cert_not_after INTEGER,
            cert_revoked INTEGER,
            timestamp_result INTEGER NOT NULL DEFAULT 0,
            token_gen_time INTEGER,
            PRIMARY KEY(account, dm_id),
            FOREIGN KEY(account) REFERENCES accounts(username) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            account TEXT NOT NULL,
            message_id INTEGER NOT NULL,
            event_time TEXT NOT NULL DEFAULT '',
            description TEXT NOT NULL DEFAULT '',
            FOREIGN KEY(account, message_id) REFERENCES messages(account, dm_id) ON DELETE CASCADE
        );`,
		`CREATE TABLE IF NOT EXISTS attachments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            account TEXT NOT NULL,
            message_id INTEGER NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            mime_type TEXT NOT NULL DEFAULT '',
            data BLOB NOT NULL,
            FOREIGN KEY(account, message_id) REFERENCES messages(account, dm_id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_events_message ON events(account, message_id);`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments(account, message_id);`,
	}

	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) UpsertAccount(ctx context.Context, account databox.Account, now time.Time) error {
	query := `INSERT INTO accounts (username, name, created_at)
        VALUES (?, ?, ?)
        ON CONFLICT(username) DO UPDATE SET name = excluded.name;`
	_, err := s.db.ExecContext(ctx, query, account.Username, account.Name, now.Unix())
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}

// InsertMessage stores msg with its events and attachments in one
// transaction. It is the write side used by the sync layer.
func (s *Store) InsertMessage(ctx context.Context, account string, msg *databox.Message, isSent bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	v := msg.Verification
	var certNotBefore, certNotAfter, certRevoked any
	if w, ok := v.Certificate.(databox.CertificateWindow); ok {
		certNotBefore = w.NotBefore.Unix()
		certNotAfter = w.NotAfter.Unix()
		if w.Revoked != nil {
			certRevoked = *w.Revoked
		}
	}
	var tokenGenTime any
	if v.Token != nil {
		tokenGenTime = nullableUnix(v.Token.GenTime)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO messages
        (dm_id, account, is_sent, dm_type, annotation,
         sender, sender_address, recipient, recipient_address,
         sender_ident, sender_ref_number, recipient_ident, recipient_ref_number, to_hands,
         legal_title_law, legal_title_year, legal_title_sect, legal_title_par, legal_title_point,
         delivery_time, acceptance_time, status,
         verification_attempted, message_valid, cert_not_before, cert_not_after, cert_revoked,
         timestamp_result, token_gen_time)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		msg.ID, account, isSent, msg.Type, msg.Annotation,
		msg.Sender, msg.SenderAddress, msg.Recipient, msg.RecipientAddress,
		msg.SenderIdent, msg.SenderRefNumber, msg.RecipientIdent, msg.RecipientRefNumber, msg.ToHands,
		msg.LegalTitleLaw, msg.LegalTitleYear, msg.LegalTitleSect, msg.LegalTitlePar, msg.LegalTitlePoint,
		nullableUnix(msg.DeliveryTime), nullableUnix(msg.AcceptanceTime), msg.Status,
		v.Attempted, v.MessageValid, certNotBefore, certNotAfter, certRevoked,
		int(v.Timestamp), tokenGenTime,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	for _, event := range msg.Events {
		eventTime := ""
		if !event.Time.IsZero() {
			eventTime = event.Time.In(s.loc).Format(eventTimeLayout)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO events (account, message_id, event_time, description)
            VALUES (?, ?, ?, ?);`, account, msg.ID, eventTime, event.Description)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	for _, attachment := range msg.Attachments {
		data := attachment.Content
		if data == nil {
			data = []byte{}
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO attachments (account, message_id, description, mime_type, data)
            VALUES (?, ?, ?, ?, ?);`, account, msg.ID, attachment.Description, attachment.MimeType, data)
		if err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message: %w", err)
	}
	return nil
}

func (s *Store) Accounts(ctx context.Context) ([]databox.Account, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, name FROM accounts ORDER BY username;`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []databox.Account
	for rows.Next() {
		var account databox.Account
		if err := rows.Scan(&account.Username, &account.Name); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// MessageIDs returns a snapshot of the identifiers held for account.
func (s *Store) MessageIDs(ctx context.Context, account string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT dm_id FROM messages WHERE account = ? ORDER BY dm_id;`, account)
	if err != nil {
		return nil, fmt.Errorf("list message ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan message id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list message ids: %w", err)
	}
	return ids, nil
}

func (s *Store) IsSent(ctx context.Context, account string, id int64) (bool, error) {
	var sent bool
	row := s.db.QueryRowContext(ctx, `SELECT is_sent FROM messages WHERE dm_id = ? AND account = ?;`, id, account)
	if err := row.Scan(&sent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, sql.ErrNoRows
		}
		return false, fmt.Errorf("get message direction: %w", err)
	}
	return sent, nil
}

func (s *Store) Message(ctx context.Context, account string, id int64) (*databox.Message, error) {
	var (
		msg                                     databox.Message
		deliveryTime, acceptanceTime, tokenTime sql.NullInt64
		certNotBefore, certNotAfter             sql.NullInt64
		certRevoked                             sql.NullBool
		timestampResult                         int
	)
	row := s.db.QueryRowContext(ctx, `SELECT dm_id, dm_type, annotation,
            sender, sender_address, recipient, recipient_address,
            sender_ident, sender_ref_number, recipient_ident, recipient_ref_number, to_hands,
            legal_title_law, legal_title_year, legal_title_sect, legal_title_par, legal_title_point,
            delivery_time, acceptance_time, status,
            verification_attempted, message_valid, cert_not_before, cert_not_after, cert_revoked,
            timestamp_result, token_gen_time
        FROM messages
        WHERE dm_id = ? AND account = ?;`, id, account)
	if err := row.Scan(
		&msg.ID, &msg.Type, &msg.Annotation,
		&msg.Sender, &msg.SenderAddress, &msg.Recipient, &msg.RecipientAddress,
		&msg.SenderIdent, &msg.SenderRefNumber, &msg.RecipientIdent, &msg.RecipientRefNumber, &msg.ToHands,
		&msg.LegalTitleLaw, &msg.LegalTitleYear, &msg.LegalTitleSect, &msg.LegalTitlePar, &msg.LegalTitlePoint,
		&deliveryTime, &acceptanceTime, &msg.Status,
		&msg.Verification.Attempted, &msg.Verification.MessageValid, &certNotBefore, &certNotAfter, &certRevoked,
		&timestampResult, &tokenTime,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get message: %w", err)
	}

	msg.DeliveryTime = s.fromUnix(deliveryTime)
	msg.AcceptanceTime = s.fromUnix(acceptanceTime)
	msg.Verification.Timestamp = databox.TimestampResult(timestampResult)
	if tokenTime.Valid {
		msg.Verification.Token = &databox.TimestampToken{GenTime: s.fromUnix(tokenTime)}
	}
	if certNotBefore.Valid && certNotAfter.Valid {
		window := databox.CertificateWindow{
			NotBefore: s.fromUnix(certNotBefore),
			NotAfter:  s.fromUnix(certNotAfter),
		}
		if certRevoked.Valid {
			revoked := certRevoked.Bool
			window.Revoked = &revoked
		}
		msg.Verification.Certificate = window
	}

	events, err := s.getEvents(ctx, account, id)
	if err != nil {
		return nil, err
	}
	msg.Events = events

	attachments, err := s.getAttachments(ctx, account, id)
	if err != nil {
		return nil, err
	}
	msg.Attachments = attachments
	return &msg, nil
}

func (s *Store) getEvents(ctx context.Context, account string, messageID int64) ([]databox.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT event_time, description FROM events
        WHERE account = ? AND message_id = ? ORDER BY id;`, account, messageID)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []databox.Event
	for rows.Next() {
		var raw string
		var event databox.Event
		if err := rows.Scan(&raw, &event.Description); err != nil {
			return nil, fmt.Errorf("get events: %w", err)
		}
		event.Time = s.parseEventTime(raw)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	return events, nil
}

func (s *Store) getAttachments(ctx context.Context, account string, messageID int64) ([]databox.Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT description, mime_type, data FROM attachments
        WHERE account = ? AND message_id = ? ORDER BY id;`, account, messageID)
	if err != nil {
		return nil, fmt.Errorf("get attachments: %w", err)
	}
	defer rows.Close()

	var attachments []databox.Attachment
	for rows.Next() {
		var attachment databox.Attachment
		if err := rows.Scan(&attachment.Description, &attachment.MimeType, &attachment.Content); err != nil {
			return nil, fmt.Errorf("get attachments: %w", err)
		}
		attachments = append(attachments, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get attachments: %w", err)
	}
	return attachments, nil
}

// parseEventTime accepts times with and without fractional seconds. An
// unreadable value yields the zero time, which renders as not available.
func (s *Store) parseEventTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(eventTimeLayout, raw, s.loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *Store) fromUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0).In(s.loc)
}

func nullableUnix(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}
