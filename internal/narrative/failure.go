package narrative

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// GenerationFailure is the single error shape every vendor adapter reports.
// It matches ErrGenerationFailed under errors.Is.
type GenerationFailure struct {
	Vendor Vendor
	// StatusCode is the HTTP status of a non-2xx response, zero otherwise.
	StatusCode int
	TimedOut   bool
	Reason     string
	Err        error
}

func (f *GenerationFailure) Error() string {
	name := f.Vendor.DisplayName()
	switch {
	case f.TimedOut:
		return fmt.Sprintf("%s API timed out", name)
	case f.StatusCode != 0 && f.Reason != "":
		return fmt.Sprintf("%s API error: status %d - %s", name, f.StatusCode, f.Reason)
	case f.StatusCode != 0:
		return fmt.Sprintf("%s API error: status %d", name, f.StatusCode)
	case f.Reason != "":
		return fmt.Sprintf("%s API error: %s", name, f.Reason)
	default:
		return fmt.Sprintf("%s API error", name)
	}
}

func (f *GenerationFailure) Is(target error) bool {
	return target == ErrGenerationFailed || target == ErrLLMFailed
}

func (f *GenerationFailure) Unwrap() error { return f.Err }

// transportFailure classifies an error raised before a response was read.
func transportFailure(ctx context.Context, vendor Vendor, err error) *GenerationFailure {
	f := &GenerationFailure{Vendor: vendor, Reason: err.Error(), Err: err}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		f.TimedOut = true
		return f
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		f.TimedOut = true
	}
	return f
}
