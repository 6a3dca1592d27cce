//go:build integration

package payment

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupInbox(t *testing.T) (*PostgresInbox, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:14-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "testuser",
				"POSTGRES_PASSWORD": "testpass",
				"POSTGRES_DB":       "payments",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, fmt.Sprintf("postgres://testuser:testpass@%s:%s/payments?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../migrations/payments/000001_create_payment_inbox.up.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	return NewPostgresInbox(pool), pool
}

func TestPostgresInboxLifecycle(t *testing.T) {
	inbox, pool := setupInbox(t)
	ctx := context.Background()
	msg := Message{Topic: "order-generated", Partition: 1, Offset: 17, Key: "k"}

	prev, err := inbox.Receive(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, State(""), prev)

	orderID := uuid.New()
	require.NoError(t, inbox.Advance(ctx, msg, Transition{State: StateDeserialized, OrderID: &orderID}))
	require.NoError(t, inbox.Advance(ctx, msg, Transition{State: StateFailed, Error: "payment initiation is not implemented"}))

	var (
		state    string
		stored   uuid.UUID
		errText  string
		attempts int
	)
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT state, order_id, error, attempts FROM payment_inbox WHERE topic = $1 AND partition = $2 AND "offset" = $3`,
		msg.Topic, msg.Partition, msg.Offset).Scan(&state, &stored, &errText, &attempts))
	assert.Equal(t, string(StateFailed), state)
	assert.Equal(t, orderID, stored, "order id survives later transitions")
	assert.Equal(t, "payment initiation is not implemented", errText)
	assert.Equal(t, 1, attempts)

	prev, err = inbox.Receive(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, prev)
}

func TestPostgresInboxAdvanceUnknownMessage(t *testing.T) {
	inbox, _ := setupInbox(t)

	err := inbox.Advance(context.Background(), Message{Topic: "order-generated", Offset: 1}, Transition{State: StateProcessed})
	assert.ErrorContains(t, err, "no row")
}
