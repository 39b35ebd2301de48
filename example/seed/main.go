package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.io/infrasutra/databoxmail/internal/databox"
	"github.io/infrasutra/databoxmail/internal/store"
)

func main() {
	dbPath := getenvDefault("DB_PATH", "databox.db")
	ctx := context.Background()

	db, err := store.Open(ctx, dbPath)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		panic(err)
	}

	now := time.Now()
	office := databox.Account{Username: "abc1234", Name: "Example Office"}
	home := databox.Account{Username: "xyz9876", Name: "Example Household"}
	for _, account := range []databox.Account{office, home} {
		if err := db.UpsertAccount(ctx, account, now); err != nil {
			panic(err)
		}
	}

	notRevoked := false
	base := now.Add(-72 * time.Hour).Truncate(time.Second)

	messages := []struct {
		account databox.Account
		sent    bool
		msg     *databox.Message
	}{
		{office, true, &databox.Message{
			ID:               1001,
			Type:             "K",
			Annotation:       "Invoice 2024/17",
			Sender:           "Example Office",
			SenderAddress:    "Main Street 1, Prague",
			Recipient:        "Customer s.r.o.",
			RecipientAddress: "Side Street 2, Brno",
			SenderRefNumber:  "INV-2024-17",
			DeliveryTime:     base,
			AcceptanceTime:   base.Add(2 * time.Hour),
			Status:           6,
			Events: []databox.Event{
				{Time: base, Description: "EV0: Message was delivered"},
				{Time: base.Add(2 * time.Hour), Description: "EV4: Message was accepted"},
			},
			Verification: databox.Verification{
				Attempted:    true,
				MessageValid: true,
				Certificate: databox.CertificateWindow{
					NotBefore: base.AddDate(-1, 0, 0),
					NotAfter:  base.AddDate(1, 0, 0),
					Revoked:   &notRevoked,
				},
				Timestamp: databox.TimestampValid,
				Token:     &databox.TimestampToken{GenTime: base},
			},
			Attachments: []databox.Attachment{
				{Description: "faktura.pdf", MimeType: "application/pdf", Content: []byte("%PDF-1.4\n%seed\n")},
			},
		}},
		{office, false, &databox.Message{
			ID:               1002,
			Type:             "V",
			Annotation:       "Rozhodnutí o přidělení",
			Sender:           "Městský úřad",
			SenderAddress:    "Náměstí 3, Olomouc",
			Recipient:        "Example Office",
			RecipientAddress: "Main Street 1, Prague",
			LegalTitleLaw:    "500",
			LegalTitleYear:   "2004",
			LegalTitleSect:   "67",
			DeliveryTime:     base.Add(24 * time.Hour),
			AcceptanceTime:   base.Add(26 * time.Hour),
			Status:           7,
			Verification: databox.Verification{
				Attempted:    true,
				MessageValid: true,
				Certificate: databox.CertificateWindow{
					NotBefore: base.AddDate(-1, 0, 0),
					NotAfter:  base.AddDate(1, 0, 0),
				},
				Timestamp: databox.TimestampAbsent,
			},
			Attachments: []databox.Attachment{
				{Description: "zpráva.pdf", Content: []byte("%PDF-1.4\n%seed\n")},
				{Description: "příloha.xml.gz", MimeType: "bogus", Content: []byte{0x1f, 0x8b}},
			},
		}},
		{home, false, &databox.Message{
			ID:         2001,
			Annotation: "Undated notice",
			Sender:     "Tax Office",
			Status:     4,
		}},
	}

	inserted := 0
	for _, m := range messages {
		if _, err := db.IsSent(ctx, m.account.Username, m.msg.ID); err == nil {
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			panic(err)
		}
		if err := db.InsertMessage(ctx, m.account.Username, m.msg, m.sent); err != nil {
			panic(err)
		}
		inserted++
	}

	fmt.Printf("seeded %d of %d messages into %s\n", inserted, len(messages), dbPath)
}

func getenvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
