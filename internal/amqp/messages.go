package amqp

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/coderwalt570/WaltonsCreativeStudio/internal/events"
)

const contentTypeJSON = "application/json"

// newPublishing wraps msg as a persistent JSON publishing with a fresh
// message id.
func newPublishing(msg *events.ExpenseRecorded) (amqp091.Publishing, error) {
	body, err := msg.ToJSON()
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}
	return amqp091.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Type:         events.TypeExpenseRecorded,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}

// decodeDelivery rejects deliveries of another type before decoding the body.
func decodeDelivery(d amqp091.Delivery) (*events.ExpenseRecorded, error) {
	if d.Type != "" && d.Type != events.TypeExpenseRecorded {
		return nil, fmt.Errorf("unexpected message type %q", d.Type)
	}
	return events.ExpenseRecordedFromJSON(d.Body)
}
