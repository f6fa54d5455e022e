// Package dispatch defines the contracts between the notification core and
// its collaborators.
package dispatch

import (
	"context"
	"io"

	"github.com/tinywideclouds/go-pushbullet-service/internal/platform/pushbullet"
)

// ProviderClient defines the subset of the Pushbullet API the service uses.
// *pushbullet.Client satisfies it; tests substitute a mock.
type ProviderClient interface {
	// Me returns the account owning the key, or pushbullet.ErrInvalidKey.
	Me(ctx context.Context) (*pushbullet.User, error)

	// Devices and Channels list the recipients that can be addressed by name.
	Devices(ctx context.Context) ([]pushbullet.Device, error)
	Channels(ctx context.Context) ([]pushbullet.Channel, error)

	// Push sends a note, link or file push.
	Push(ctx context.Context, p pushbullet.Push) error

	// UploadFile stores a file with the provider and returns its metadata.
	UploadFile(ctx context.Context, name string, r io.Reader) (*pushbullet.FileUpload, error)
}

// PathChecker decides whether a local file may be read and uploaded.
type PathChecker interface {
	IsAllowedPath(path string) bool
}
