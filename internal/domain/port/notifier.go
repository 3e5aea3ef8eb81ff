package port

import "context"

// FailureNotifier tells the requester that a render was given up on.
type FailureNotifier interface {
	NotifyFailure(ctx context.Context, userEmail, jobID, videoKey, reason string) error
}
