// Package dispatcher turns notification requests into Pushbullet pushes.
package dispatcher

import (
	"errors"
	"fmt"

	"github.com/tinywideclouds/go-pushbullet-service/internal/targets"
)

// DefaultTitle is used when a request carries no title.
const DefaultTitle = "Home Assistant"

// ErrEmptyFile aborts a file push whose upload was reported as empty.
var ErrEmptyFile = errors.New("refusing to send an empty file")

// Data carries the optional attachments of a request. URL wins over File.
type Data struct {
	URL  string `json:"url,omitempty"`
	File string `json:"file,omitempty"`
}

// Request is a single "send message to targets" call. Targets are
// "type/name" strings; an empty list sends to every device on the account.
type Request struct {
	ID      string   `json:"request_id,omitempty"`
	Message string   `json:"message"`
	Title   string   `json:"title,omitempty"`
	Targets []string `json:"target,omitempty"`
	Data    *Data    `json:"data,omitempty"`
}

// Status is the result of processing one target.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

type Outcome struct {
	Target string `json:"target"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Report lists the outcome of every target of a request, in request order.
type Report struct {
	RequestID string    `json:"request_id"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Delivered counts the targets that were pushed successfully.
func (r Report) Delivered() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusDelivered {
			n++
		}
	}
	return n
}

// DeliveryError is returned by a push attempt that did not reach the
// provider or was rejected by it.
type DeliveryError struct {
	Recipient targets.Recipient
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
