package database

import (
	"context"
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL holds catalog tables, notification triggers, and ledger tables.
//
//go:embed schema.sql
var schemaSQL string

// DefaultCatalogChannel is the NOTIFY channel used when none is configured.
const DefaultCatalogChannel = "catalog_events"

const channelPlaceholder = "__CATALOG_CHANNEL__"

// channelName keeps the channel safe to splice into the trigger bodies as a string literal.
var channelName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidChannelName reports whether name can be used as the catalog NOTIFY channel.
func ValidChannelName(name string) bool {
	return channelName.MatchString(name)
}

// renderSchema returns the schema with the trigger NOTIFY channel filled in.
func renderSchema(channel string) (string, error) {
	if channel == "" {
		channel = DefaultCatalogChannel
	}

	if !ValidChannelName(channel) {
		return "", fmt.Errorf("invalid catalog channel %q", channel)
	}

	return strings.ReplaceAll(schemaSQL, channelPlaceholder, channel), nil
}

// EnsureVectorExtension creates the pgvector extension over a short-lived connection.
// Run it before opening a pool that registers vector types in AfterConnect.
func EnsureVectorExtension(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	return nil
}

// ApplySchema executes the embedded schema. Every statement is idempotent. channel is the
// NOTIFY channel the catalog triggers publish on and must match the listener's channel;
// empty means DefaultCatalogChannel.
func ApplySchema(ctx context.Context, db *pgxpool.Pool, channel string) error {
	sql, err := renderSchema(channel)
	if err != nil {
		return err
	}

	// No arguments: pgx sends this over the simple protocol, which allows multiple statements.
	if _, err := db.Exec(ctx, sql); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	return nil
}
