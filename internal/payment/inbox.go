package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type State string

const (
	StateReceived     State = "RECEIVED"
	StateDeserialized State = "DESERIALIZED"
	StateProcessed    State = "PROCESSED"
	StateFailed       State = "FAILED"
)

func (s State) Terminal() bool {
	return s == StateProcessed || s == StateFailed
}

// Transition is a state change of one inbox row. Nil ids leave the stored value.
type Transition struct {
	State     State
	OrderID   *uuid.UUID
	PaymentID *uuid.UUID
	Error     string
}

type Inbox interface {
	// Receive records a delivery and returns the row's state before this
	// delivery, or "" when the message is new.
	Receive(ctx context.Context, msg Message) (State, error)
	Advance(ctx context.Context, msg Message, t Transition) error
}

type pgxConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresInbox keeps one row per (topic, partition, offset).
type PostgresInbox struct {
	db pgxConn
}

func NewPostgresInbox(db pgxConn) *PostgresInbox {
	return &PostgresInbox{db: db}
}

func (i *PostgresInbox) Receive(ctx context.Context, msg Message) (State, error) {
	var (
		state    State
		attempts int
	)
	err := i.db.QueryRow(ctx, `
		INSERT INTO payment_inbox (topic, partition, "offset", message_key, state)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (topic, partition, "offset") DO UPDATE
		SET attempts = payment_inbox.attempts + 1, updated_at = NOW()
		RETURNING state, attempts
	`, msg.Topic, msg.Partition, msg.Offset, msg.Key, StateReceived).Scan(&state, &attempts)
	if err != nil {
		return "", fmt.Errorf("record inbox message: %w", err)
	}

	if attempts == 1 {
		return "", nil
	}
	return state, nil
}

func (i *PostgresInbox) Advance(ctx context.Context, msg Message, t Transition) error {
	var errText *string
	if t.Error != "" {
		errText = &t.Error
	}

	tag, err := i.db.Exec(ctx, `
		UPDATE payment_inbox
		SET state = $4,
		    order_id = COALESCE($5, order_id),
		    payment_id = COALESCE($6, payment_id),
		    error = $7,
		    updated_at = NOW()
		WHERE topic = $1 AND partition = $2 AND "offset" = $3
	`, msg.Topic, msg.Partition, msg.Offset, t.State, t.OrderID, t.PaymentID, errText)
	if err != nil {
		return fmt.Errorf("advance inbox message to %s: %w", t.State, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("advance inbox message to %s: no row for %s/%d@%d", t.State, msg.Topic, msg.Partition, msg.Offset)
	}
	return nil
}
