// Package services provides the business logic over the ledger store: manual
// transaction entry with event publishing, and recurring-expense
// reconciliation.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"masroufi/internal/amqp"
	"masroufi/internal/core"
	"masroufi/internal/ledger"
)

// EventPublisher announces ledger mutations to interested consumers (the
// export worker). Publishing is always best-effort.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, id, source string) error
	PublishTransactionDeleted(ctx context.Context, id string) error
}

// AMQPPublisher adapts the AMQP client to EventPublisher.
type AMQPPublisher struct {
	client *amqp.Client
}

func NewAMQPPublisher(client *amqp.Client) *AMQPPublisher {
	return &AMQPPublisher{client: client}
}

func (p *AMQPPublisher) PublishTransactionCreated(ctx context.Context, id, source string) error {
	return p.client.PublishTransactionEvent(ctx, amqp.NewTransactionEventMessage(amqp.EventTransactionCreated, id, source))
}

func (p *AMQPPublisher) PublishTransactionDeleted(ctx context.Context, id string) error {
	return p.client.PublishTransactionEvent(ctx, amqp.NewTransactionEventMessage(amqp.EventTransactionDeleted, id, ""))
}

// TransactionService orchestrates manual transaction operations across the
// ledger store and the event pipeline.
type TransactionService struct {
	store  *ledger.Store
	events EventPublisher
}

// NewTransactionService creates a service. events may be nil; mutations then
// happen without announcements (standalone mode).
func NewTransactionService(store *ledger.Store, events EventPublisher) *TransactionService {
	return &TransactionService{
		store:  store,
		events: events,
	}
}

// CreateTransaction validates, stores and announces a user-entered
// transaction.
func (s *TransactionService) CreateTransaction(ctx context.Context, data core.Transaction) (core.Transaction, error) {
	if err := data.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	tx, err := s.store.AddTransaction(ctx, data)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishTransactionCreated(ctx, tx.ID, "manual"); err != nil {
			// Don't fail the request, the transaction is saved locally
			slog.ErrorContext(ctx, "Failed to publish transaction event",
				"transaction_id", tx.ID, "error", err)
		}
	}

	return tx, nil
}

// UpdateTransaction replaces the stored record wholesale. A miss stays a
// silent no-op toward the outside; found is reported for callers that care.
func (s *TransactionService) UpdateTransaction(ctx context.Context, tx core.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, fmt.Errorf("validate transaction: %w", err)
	}
	found, err := s.store.UpdateTransaction(ctx, tx)
	if err != nil {
		return found, fmt.Errorf("update transaction: %w", err)
	}
	return found, nil
}

// DeleteTransaction removes the record and announces the deletion.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	found, err := s.store.DeleteTransaction(ctx, id)
	if err != nil {
		return found, fmt.Errorf("delete transaction: %w", err)
	}

	if found && s.events != nil {
		if err := s.events.PublishTransactionDeleted(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to publish delete event",
				"transaction_id", id, "error", err)
		}
	}

	return found, nil
}
