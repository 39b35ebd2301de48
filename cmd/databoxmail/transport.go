package main

import (
	"context"
	"fmt"
	"time"

	"github.io/infrasutra/databoxmail/internal/config"
	"github.io/infrasutra/databoxmail/internal/transport"
	"github.io/infrasutra/databoxmail/internal/transport/imapappend"
	"github.io/infrasutra/databoxmail/internal/transport/mboxfile"
	"github.io/infrasutra/databoxmail/internal/transport/ses"
	"github.io/infrasutra/databoxmail/internal/transport/smtprelay"
	"github.io/infrasutra/databoxmail/internal/transport/stdout"
)

func newTransport(ctx context.Context, cfg config.Config) (transport.Transport, error) {
	switch cfg.Transport {
	case config.TransportSMTP:
		return smtprelay.New(smtprelay.Config{
			Addr:      cfg.SMTP.Server,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			StartTLS:  cfg.SMTP.StartTLS,
			HelloName: cfg.SMTP.HelloName,
			Timeout:   time.Duration(cfg.SMTP.TimeoutSeconds) * time.Second,
		}), nil
	case config.TransportIMAP:
		return imapappend.New(imapappend.Config{
			Addr:     cfg.IMAP.Server,
			Username: cfg.IMAP.Username,
			Password: cfg.IMAP.Password,
			Folder:   cfg.IMAP.Folder,
			UseTLS:   cfg.IMAP.TLS,
		}), nil
	case config.TransportMbox:
		return mboxfile.New(cfg.Mbox.Path), nil
	case config.TransportSES:
		s, err := ses.New(ctx, ses.Config{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create ses transport: %w", err)
		}
		return s, nil
	case config.TransportStdout:
		return stdout.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownTransport, cfg.Transport)
	}
}
