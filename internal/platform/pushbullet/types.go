// Package pushbullet provides a client for the Pushbullet v2 REST API.
package pushbullet

import (
	"errors"
	"fmt"
)

// PushType is the "type" field of a push.
type PushType string

const (
	PushNote PushType = "note"
	PushLink PushType = "link"
	PushFile PushType = "file"
)

// EmptyFileType is the MIME type reported for a zero-length upload.
const EmptyFileType = "application/x-empty"

// ErrInvalidKey is returned when the API rejects the access token.
var ErrInvalidKey = errors.New("pushbullet: invalid api key")

// ErrFileTooLarge is returned by UploadFile for content over the upload limit.
var ErrFileTooLarge = errors.New("pushbullet: file too large")

// PushError is returned for any non-2xx response from the API.
type PushError struct {
	StatusCode int
	Message    string
}

func (e *PushError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("pushbullet: api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("pushbullet: api returned status %d: %s", e.StatusCode, e.Message)
}

// User is the account the access token belongs to.
type User struct {
	Iden  string `json:"iden"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Device is a device registered to the account.
type Device struct {
	Iden     string `json:"iden"`
	Nickname string `json:"nickname"`
	Active   bool   `json:"active"`
	Pushable bool   `json:"pushable"`
}

// Channel is a channel owned by the account.
type Channel struct {
	Iden   string `json:"iden"`
	Tag    string `json:"tag"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Push is the body of POST /pushes. At most one of DeviceIden, ChannelTag
// and Email is set; none of them means every device on the account.
type Push struct {
	Type  PushType `json:"type"`
	Title string   `json:"title,omitempty"`
	Body  string   `json:"body,omitempty"`
	URL   string   `json:"url,omitempty"`

	FileName string `json:"file_name,omitempty"`
	FileType string `json:"file_type,omitempty"`
	FileURL  string `json:"file_url,omitempty"`

	DeviceIden string `json:"device_iden,omitempty"`
	ChannelTag string `json:"channel_tag,omitempty"`
	Email      string `json:"email,omitempty"`
}

// FileUpload is the metadata of an uploaded file, ready to be attached to a
// file push.
type FileUpload struct {
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	FileURL  string `json:"file_url"`
}

type uploadRequest struct {
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

type uploadResponse struct {
	FileName  string            `json:"file_name"`
	FileType  string            `json:"file_type"`
	FileURL   string            `json:"file_url"`
	UploadURL string            `json:"upload_url"`
	Data      map[string]string `json:"data"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
