// Package adapters picks the concrete event and mirror backends from the
// configuration and hands them out as the interfaces the services and the
// worker consume.
package adapters

import (
	"context"
	"fmt"

	"moneta/internal/amqp"
	"moneta/internal/config"
	"moneta/internal/services"
	ports "moneta/internal/sheets"
	gsheet "moneta/internal/sheets/google"
	mem "moneta/internal/sheets/memory"
)

const (
	MirrorGoogle = "google"
	MirrorMemory = "memory"
)

// Publisher returns client as an EventPublisher, or a nil interface when
// client is nil so services treat events as disabled.
func Publisher(client *amqp.Client) services.EventPublisher {
	if client == nil {
		return nil
	}
	return client
}

// NewAMQPClient connects when AMQP is configured. A nil client and nil error
// mean events are disabled.
func NewAMQPClient(cfg *config.Config) (*amqp.Client, error) {
	if !cfg.AMQPEnabled() {
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("amqp client: %w", err)
	}
	return client, nil
}

// DurableMirror reports whether backend keeps rows outside the process.
// The memory mirror loses everything on restart.
func DurableMirror(backend string) bool {
	return backend != MirrorMemory
}

// NewMirror returns the Google Sheets mirror when a spreadsheet is
// configured and an in-memory one otherwise, plus the backend name.
func NewMirror(ctx context.Context, cfg *config.Config) (ports.Mirror, string, error) {
	if !cfg.SheetsEnabled() {
		return mem.New(), MirrorMemory, nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, "", fmt.Errorf("google sheets mirror: %w", err)
	}
	return client, MirrorGoogle, nil
}
