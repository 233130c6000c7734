package domain

// MessageBus hands normalized inbound messages from the webhook controller
// to the processing pipeline. Publish must not block the HTTP handler beyond
// a bounded wait; delivery is in-process only, so a crash between the ACK
// and pipeline completion drops that message's processing.
type MessageBus interface {
	Publish(msg InboundMessage)
	Subscribe() <-chan InboundMessage
	Close()
}
