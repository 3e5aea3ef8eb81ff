package port

import "context"

// StatusPublisher announces a render job's state; msg is an encoded
// entity.RenderStatusMessage.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}

// DLQPublisher parks a render request that will not be retried, keeping the
// original body so it can be replayed once the cause is fixed.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
