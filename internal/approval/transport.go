package approval

import "context"

// Button is one inline response affordance attached to a prompt. Payload
// carries "action:correlation_id" and comes back verbatim in the event.
type Button struct {
	Label   string
	Payload string
}

// Event is one inbound message from the operator. Exactly one of Payload
// (button press) or Text (free-form message) is set.
type Event struct {
	Payload    string
	CallbackID string
	Text       string
	Sender     string
}

// Transport is the asynchronous messaging endpoint the channel speaks over.
// Events must stay deliverable while SendPrompt callers are blocked; the
// channel owns exactly one long-lived reader of Events.
type Transport interface {
	SendPrompt(ctx context.Context, text string, buttons []Button) error
	SendNotice(ctx context.Context, text string) error
	AckCallback(ctx context.Context, callbackID, text string) error
	Events() <-chan Event
	Close() error
}
