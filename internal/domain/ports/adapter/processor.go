package adapter

import "context"

// DispatchRequest is one unit of work handed to the external image processor.
type DispatchRequest struct {
	JobID       string
	Image       []byte
	FileName    string
	CallbackURL string
}

// ImageProcessor submits work to the remote job API. A nil error means
// "accepted for processing", not "completed". Rejections are reported as
// *domain.DispatchError.
type ImageProcessor interface {
	Dispatch(ctx context.Context, req DispatchRequest) error
}
