package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/safar/marketplace-orders/internal/config"
	"github.com/safar/marketplace-orders/internal/dlq"
	"github.com/safar/marketplace-orders/internal/events"
	"github.com/safar/marketplace-orders/internal/models"
)

type MockInbox struct {
	mock.Mock
}

func (m *MockInbox) Receive(ctx context.Context, msg Message) (State, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(State), args.Error(1)
}

func (m *MockInbox) Advance(ctx context.Context, msg Message, t Transition) error {
	args := m.Called(ctx, msg, t)
	return args.Error(0)
}

type MockInitiator struct {
	mock.Mock
}

func (m *MockInitiator) Initiate(ctx context.Context, event events.OrderCreated) (*models.Payment, error) {
	args := m.Called(ctx, event)
	if p := args.Get(0); p != nil {
		return p.(*models.Payment), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockDLQ struct {
	mock.Mock
}

func (m *MockDLQ) Push(ctx context.Context, msg dlq.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func orderMessage(t *testing.T) (Message, events.OrderCreated) {
	t.Helper()
	order := models.NewPendingOrder("buyer-7", []models.OrderItem{
		models.NewOrderItem(uuid.NewString(), "Desk", decimal.RequireFromString("120.00"), 1),
	}, time.Now())
	event := events.FromOrder(order)
	payload, err := events.Encode(event)
	require.NoError(t, err)

	return Message{Topic: "order-generated", Partition: 0, Offset: 7, Key: event.OrderID, Value: payload}, event
}

func stateIs(state State) any {
	return mock.MatchedBy(func(t Transition) bool { return t.State == state })
}

func TestProcessWithUnimplementedInitiatorEndsFailed(t *testing.T) {
	// Arrange
	msg, event := orderMessage(t)
	inbox := new(MockInbox)
	inbox.On("Receive", mock.Anything, msg).Return(State(""), nil)
	inbox.On("Advance", mock.Anything, msg, stateIs(StateDeserialized)).Return(nil)
	inbox.On("Advance", mock.Anything, msg, mock.MatchedBy(func(tr Transition) bool {
		return tr.State == StateFailed && tr.OrderID != nil && tr.OrderID.String() == event.OrderID &&
			tr.Error == ErrPaymentInitiationNotImplemented.Error()
	})).Return(nil)

	p, err := NewProcessor(inbox, UnimplementedInitiator{}, nil, config.FailurePolicyLog)
	require.NoError(t, err)

	// Act
	err = p.Process(context.Background(), msg)

	// Assert
	assert.NoError(t, err)
	inbox.AssertExpectations(t)
	inbox.AssertNotCalled(t, "Advance", mock.Anything, msg, stateIs(StateProcessed))
}

func TestProcessRecordsPayment(t *testing.T) {
	msg, event := orderMessage(t)
	payment := &models.Payment{ID: uuid.New(), OrderID: uuid.MustParse(event.OrderID), Amount: event.TotalAmount, Status: models.PaymentStatusPending}

	inbox := new(MockInbox)
	inbox.On("Receive", mock.Anything, msg).Return(State(""), nil)
	inbox.On("Advance", mock.Anything, msg, stateIs(StateDeserialized)).Return(nil)
	inbox.On("Advance", mock.Anything, msg, mock.MatchedBy(func(tr Transition) bool {
		return tr.State == StateProcessed && tr.PaymentID != nil && *tr.PaymentID == payment.ID
	})).Return(nil)

	initiator := new(MockInitiator)
	initiator.On("Initiate", mock.Anything, mock.MatchedBy(func(e events.OrderCreated) bool {
		return e.OrderID == event.OrderID && e.TotalAmount.Equal(event.TotalAmount) && len(e.Items) == 1
	})).Return(payment, nil)

	p, err := NewProcessor(inbox, initiator, nil, config.FailurePolicyLog)
	require.NoError(t, err)

	assert.NoError(t, p.Process(context.Background(), msg))
	inbox.AssertExpectations(t)
	initiator.AssertExpectations(t)
}

func TestProcessDeadLettersUndecodableMessage(t *testing.T) {
	msg := Message{Topic: "order-generated", Partition: 1, Offset: 99, Value: []byte(`{"orderId":`)}

	inbox := new(MockInbox)
	inbox.On("Receive", mock.Anything, msg).Return(State(""), nil)
	inbox.On("Advance", mock.Anything, msg, mock.MatchedBy(func(tr Transition) bool {
		return tr.State == StateFailed && tr.OrderID == nil && tr.Error != ""
	})).Return(nil)

	queue := new(MockDLQ)
	queue.On("Push", mock.Anything, mock.MatchedBy(func(m dlq.Message) bool {
		return m.Payload == `{"orderId":` && m.Offset == 99 && m.Partition == 1 && m.Error != ""
	})).Return(nil)

	initiator := new(MockInitiator)
	p, err := NewProcessor(inbox, initiator, queue, config.FailurePolicyDeadLetter)
	require.NoError(t, err)

	assert.NoError(t, p.Process(context.Background(), msg))
	queue.AssertExpectations(t)
	inbox.AssertExpectations(t)
	initiator.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
}

func TestProcessLogPolicyDoesNotDeadLetter(t *testing.T) {
	msg := Message{Topic: "order-generated", Offset: 3, Value: []byte(`not json`)}

	inbox := new(MockInbox)
	inbox.On("Receive", mock.Anything, msg).Return(State(""), nil)
	inbox.On("Advance", mock.Anything, msg, stateIs(StateFailed)).Return(nil)
	queue := new(MockDLQ)

	p, err := NewProcessor(inbox, UnimplementedInitiator{}, queue, config.FailurePolicyLog)
	require.NoError(t, err)

	assert.NoError(t, p.Process(context.Background(), msg))
	queue.AssertNotCalled(t, "Push", mock.Anything, mock.Anything)
}

func TestProcessAsksForRedeliveryWhenDeadLetterFails(t *testing.T) {
	msg := Message{Topic: "order-generated", Offset: 5, Value: []byte(`[]`)}

	inbox := new(MockInbox)
	inbox.On("Receive", mock.Anything, msg).Return(State(""), nil)
	queue := new(MockDLQ)
	queue.On("Push", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	p, err := NewProcessor(inbox, UnimplementedInitiator{}, queue, config.FailurePolicyDeadLetter)
	require.NoError(t, err)

	err = p.Process(context.Background(), msg)

	assert.ErrorContains(t, err, "dead letter")
	inbox.AssertNotCalled(t, "Advance", mock.Anything, msg, stateIs(StateFailed))
}

func TestProcessSkipsHandledRedelivery(t *testing.T) {
	msg, _ := orderMessage(t)

	for _, prev := range []State{StateProcessed, StateFailed} {
		inbox := new(MockInbox)
		inbox.On("Receive", mock.Anything, msg).Return(prev, nil)
		initiator := new(MockInitiator)

		p, err := NewProcessor(inbox, initiator, nil, config.FailurePolicyLog)
		require.NoError(t, err)

		assert.NoError(t, p.Process(context.Background(), msg))
		inbox.AssertNotCalled(t, "Advance", mock.Anything, mock.Anything, mock.Anything)
		initiator.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
	}
}

func TestProcessRetriesInterruptedDelivery(t *testing.T) {
	msg, _ := orderMessage(t)
	inbox := new(MockInbox)
	inbox.On("Receive", mock.Anything, msg).Return(StateDeserialized, nil)
	inbox.On("Advance", mock.Anything, msg, mock.Anything).Return(nil)
	initiator := new(MockInitiator)
	initiator.On("Initiate", mock.Anything, mock.Anything).Return(nil, nil)

	p, err := NewProcessor(inbox, initiator, nil, config.FailurePolicyLog)
	require.NoError(t, err)

	assert.NoError(t, p.Process(context.Background(), msg))
	initiator.AssertNumberOfCalls(t, "Initiate", 1)
}

func TestProcessFailsWhenInboxIsDown(t *testing.T) {
	msg, _ := orderMessage(t)
	inbox := new(MockInbox)
	inbox.On("Receive", mock.Anything, msg).Return(State(""), errors.New("connection reset"))

	p, err := NewProcessor(inbox, UnimplementedInitiator{}, nil, config.FailurePolicyLog)
	require.NoError(t, err)

	assert.Error(t, p.Process(context.Background(), msg))
}

func TestNewProcessorValidatesPolicy(t *testing.T) {
	_, err := NewProcessor(new(MockInbox), UnimplementedInitiator{}, nil, config.FailurePolicyDeadLetter)
	assert.Error(t, err)

	_, err = NewProcessor(new(MockInbox), UnimplementedInitiator{}, nil, "ignore")
	assert.Error(t, err)
}

func TestUnimplementedInitiatorNeverSucceeds(t *testing.T) {
	payment, err := UnimplementedInitiator{}.Initiate(context.Background(), events.OrderCreated{OrderID: uuid.NewString()})

	assert.Nil(t, payment)
	assert.ErrorIs(t, err, ErrPaymentInitiationNotImplemented)
}
