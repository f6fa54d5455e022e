package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tinywideclouds/go-pushbullet-service/internal/platform/pushbullet"
	"github.com/tinywideclouds/go-pushbullet-service/internal/targets"
)

type content struct {
	title string
	body  string
	url   string
	file  string
}

func (s *Service) contentFor(req Request) content {
	c := content{title: req.Title, body: req.Message}
	if c.title == "" {
		c.title = s.defaultTitle
	}
	if req.Data != nil {
		c.url = req.Data.URL
		c.file = req.Data.File
	}
	return c
}

// deliver builds the push for c and sends it to r. It returns nil or a
// *DeliveryError, and logs every failure itself.
func (s *Service) deliver(ctx context.Context, log *slog.Logger, r targets.Recipient, c content) error {
	var p pushbullet.Push
	switch {
	case c.url != "":
		p = pushbullet.Push{Type: pushbullet.PushLink, Title: c.title, Body: c.body, URL: c.url}
	case c.file != "" && s.paths.IsAllowedPath(c.file):
		up, err := s.upload(ctx, c.file)
		if err != nil {
			log.Error("Notify failed", "recipient", r.String(), "err", err)
			return &DeliveryError{Recipient: r, Err: err}
		}
		if up.FileType == pushbullet.EmptyFileType {
			log.Error("Failed to send an empty file", "file", c.file)
			return &DeliveryError{Recipient: r, Err: ErrEmptyFile}
		}
		p = pushbullet.Push{
			Type:     pushbullet.PushFile,
			Title:    c.title,
			Body:     c.body,
			FileName: up.FileName,
			FileType: up.FileType,
			FileURL:  up.FileURL,
		}
	default:
		p = pushbullet.Push{Type: pushbullet.PushNote, Title: c.title, Body: c.body}
	}

	address(&p, r)
	if err := s.client.Push(ctx, p); err != nil {
		log.Error("Notify failed", "recipient", r.String(), "err", err)
		return &DeliveryError{Recipient: r, Err: err}
	}
	return nil
}

func (s *Service) upload(ctx context.Context, path string) (*pushbullet.FileUpload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return s.client.UploadFile(ctx, path, f)
}

func address(p *pushbullet.Push, r targets.Recipient) {
	switch r.Kind {
	case targets.RecipientDevice:
		p.DeviceIden = r.Handle
	case targets.RecipientChannel:
		p.ChannelTag = r.Handle
	case targets.RecipientEmail:
		p.Email = r.Handle
	case targets.RecipientBroadcast:
	}
}
