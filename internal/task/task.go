package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a task as stored in the result backend.
type State string

// Task states. A task without a stored result is PENDING.
const (
	StatePending State = "PENDING"
	StateStarted State = "STARTED"
	StateSuccess State = "SUCCESS"
	StateFailure State = "FAILURE"
)

// Ready reports whether the state is final.
func (s State) Ready() bool {
	return s == StateSuccess || s == StateFailure
}

// DefaultQueue receives tasks that have no explicit route.
const DefaultQueue = "celery"

// Common task errors.
var (
	// ErrUnknownTask is recorded when a worker receives a task name that has
	// no registered handler.
	ErrUnknownTask = errors.New("unknown task")

	// ErrTaskFailed is returned by AsyncResult.Wait when the task ended in FAILURE.
	ErrTaskFailed = errors.New("task failed")

	// ErrInvalidArguments is returned by handlers when the payload cannot be decoded.
	ErrInvalidArguments = errors.New("invalid task arguments")

	// ErrBrokerClosed is returned when publishing to or consuming from a closed broker.
	ErrBrokerClosed = errors.New("broker is closed")
)

// Signature is a task invocation that has not been sent yet: a name plus
// encoded arguments. Chains are built from signatures.
type Signature struct {
	ID     uuid.UUID                  `json:"id"`
	Name   string                     `json:"task"`
	Args   []json.RawMessage          `json:"args"`
	Kwargs map[string]json.RawMessage `json:"kwargs,omitempty"`
	Queue  string                     `json:"queue,omitempty"`
}

// NewSignature encodes args and kwargs into a Signature.
func NewSignature(name string, args []any, kwargs map[string]any) (Signature, error) {
	sig := Signature{Name: name, Args: make([]json.RawMessage, 0, len(args))}
	for i, arg := range args {
		raw, err := json.Marshal(arg)
		if err != nil {
			return Signature{}, fmt.Errorf("failed to encode argument %d of %s: %w", i, name, err)
		}
		sig.Args = append(sig.Args, raw)
	}
	if len(kwargs) > 0 {
		sig.Kwargs = make(map[string]json.RawMessage, len(kwargs))
		for k, v := range kwargs {
			raw, err := json.Marshal(v)
			if err != nil {
				return Signature{}, fmt.Errorf("failed to encode argument %q of %s: %w", k, name, err)
			}
			sig.Kwargs[k] = raw
		}
	}
	return sig, nil
}

// Message is the envelope carried by brokers.
type Message struct {
	ID      uuid.UUID                  `json:"id"`
	Name    string                     `json:"task"`
	Args    []json.RawMessage          `json:"args"`
	Kwargs  map[string]json.RawMessage `json:"kwargs,omitempty"`
	Chain   []Signature                `json:"chain,omitempty"` // links still to run after this one
	Retries int                        `json:"retries"`
	Queue   string                     `json:"queue"`
	SentAt  time.Time                  `json:"sent_at"`
}

// newMessage turns a routed signature into a message carrying the rest of its chain.
func newMessage(sig Signature, chain []Signature) *Message {
	return &Message{
		ID:     sig.ID,
		Name:   sig.Name,
		Args:   sig.Args,
		Kwargs: sig.Kwargs,
		Chain:  chain,
		Queue:  sig.Queue,
		SentAt: time.Now().UTC(),
	}
}

// Encode serializes the message for the wire.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a wire message.
func DecodeMessage(body []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("failed to decode task message: %w", err)
	}
	if m.ID == uuid.Nil || m.Name == "" {
		return nil, fmt.Errorf("failed to decode task message: missing id or task name")
	}
	return &m, nil
}

// Result is the stored outcome of a task.
type Result struct {
	TaskID    uuid.UUID       `json:"task_id"`
	Name      string          `json:"name"`
	State     State           `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Traceback string          `json:"traceback,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	Kwargs    json.RawMessage `json:"kwargs,omitempty"`
	Worker    string          `json:"worker,omitempty"`
	Retries   int             `json:"retries"`
	Queue     string          `json:"queue,omitempty"`
	DateDone  *time.Time      `json:"date_done,omitempty"`
}

// resultFor builds a Result in the given state for msg, encoding its arguments.
func resultFor(msg *Message, state State, worker string) *Result {
	r := &Result{
		TaskID:  msg.ID,
		Name:    msg.Name,
		State:   state,
		Worker:  worker,
		Retries: msg.Retries,
		Queue:   msg.Queue,
	}
	if args, err := json.Marshal(msg.Args); err == nil {
		r.Args = args
	}
	if len(msg.Kwargs) > 0 {
		if kwargs, err := json.Marshal(msg.Kwargs); err == nil {
			r.Kwargs = kwargs
		}
	}
	return r
}
