// Package nats publishes intake events over core NATS.
package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/filing-assembler/internal/core/domain"
	"github.com/kirillkom/filing-assembler/internal/infrastructure/resilience"
)

const DefaultIntakeSubject = "filing.intake.completed"

// msgPublisher is the subset of *nats.Conn the publisher needs.
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

type Publisher struct {
	conn     msgPublisher
	subject  string
	executor *resilience.Executor
}

func NewPublisher(conn *nats.Conn, subject string, executor *resilience.Executor) *Publisher {
	return newPublisher(conn, subject, executor)
}

func newPublisher(conn msgPublisher, subject string, executor *resilience.Executor) *Publisher {
	if subject == "" {
		subject = DefaultIntakeSubject
	}
	return &Publisher{conn: conn, subject: subject, executor: executor}
}

func (p *Publisher) PublishIntakeCompleted(ctx context.Context, event domain.IntakeEvent) error {
	msg, err := intakeMessage(p.subject, event)
	if err != nil {
		return err
	}

	err = p.executor.Execute(ctx, "nats.publish", func(_ context.Context) error {
		if err := p.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyNATSError)
	return wrapTemporaryIfNeeded("publish intake event", err)
}

func intakeMessage(subject string, event domain.IntakeEvent) (*nats.Msg, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal intake event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Header.Set("Content-Type", "application/json")
	msg.Header.Set("Client-Id", event.ClientID)
	msg.Header.Set("Matter-Id", event.MatterID)
	msg.Data = data
	return msg, nil
}
