package frame

import "context"

// Processor consumes notifications from a device until the context ends.
// See the EEG processor for the reference implementation.
type Processor interface {
	Start(context.Context) error
}
