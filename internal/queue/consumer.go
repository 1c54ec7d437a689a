package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartActivityConsumer starts one consumer per domain event queue.
// Each consumer appends events to logs/activity.log in a single-line,
// human-friendly format and runs its own reconnect loop with
// exponential backoff, so the function never returns under normal
// operation.  Processing errors are logged and the offending message
// is rejected without requeue so the server keeps operating.
func StartActivityConsumer() error {
	url := BrokerURL()
	for _, name := range []string{BookingCancelledQueue, WaitlistSpotQueue} {
		go consumeForever(url, name)
	}
	consumeForever(url, BookingConfirmedQueue)
	return errors.New("activity consumer exited")
}

func consumeForever(url, queueName string) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("activity-consumer[%s]: failed to dial broker: %v; retrying in %s", queueName, err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, queueName); err != nil {
			log.Printf("activity-consumer[%s]: consume loop ended: %v; reconnecting", queueName, err)
		}
		_ = conn.Close()
		time.Sleep(2 * time.Second)
	}
}

func consumeLoop(conn *amqp.Connection, queueName string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("activity-consumer[%s]: set QoS failed: %v", queueName, err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(queueName, d.Body); err != nil {
			log.Printf("activity-consumer[%s]: handle message failed: %v", queueName, err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(queueName string, body []byte) error {
	line, err := formatLine(queueName, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "activity.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(queueName string, body []byte) (string, error) {
	switch queueName {
	case BookingConfirmedQueue:
		var ev BookingConfirmedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", queueName, err)
		}
		return fmt.Sprintf("[%s] Booking confirmed | reservation_id=%d | member_id=%d | slot_id=%d\n",
			ev.ConfirmedAt, ev.ReservationID, ev.MemberID, ev.SlotID), nil
	case BookingCancelledQueue:
		var ev BookingCancelledEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", queueName, err)
		}
		return fmt.Sprintf("[%s] Booking cancelled | reservation_id=%d | member_id=%d | slot_id=%d | refunded=%t\n",
			ev.CancelledAt, ev.ReservationID, ev.MemberID, ev.SlotID, ev.Refunded), nil
	case WaitlistSpotQueue:
		var ev WaitlistSpotEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", queueName, err)
		}
		return fmt.Sprintf("[%s] Waitlist spot opened | member_id=%d | slot_id=%d\n",
			ev.NotifiedAt, ev.MemberID, ev.SlotID), nil
	}
	return "", fmt.Errorf("unknown queue %q", queueName)
}
