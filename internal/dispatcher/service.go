package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-pushbullet-service/internal/platform/pushbullet"
	"github.com/tinywideclouds/go-pushbullet-service/internal/targets"
	"github.com/tinywideclouds/go-pushbullet-service/pkg/dispatch"
)

// Directory resolves cached targets. *targets.Cache satisfies it.
type Directory interface {
	Lookup(kind targets.Kind, name string) (targets.Recipient, bool)
	Refresh(ctx context.Context) error
	Snapshot() targets.Snapshot
}

type Service struct {
	client       dispatch.ProviderClient
	directory    Directory
	paths        dispatch.PathChecker
	defaultTitle string
	logger       *slog.Logger
}

type Option func(*Service)

func WithDefaultTitle(title string) Option {
	return func(s *Service) {
		if title != "" {
			s.defaultTitle = title
		}
	}
}

// WithDirectory replaces the target cache built from the provider client.
func WithDirectory(d Directory) Option {
	return func(s *Service) { s.directory = d }
}

// New validates the API key and populates the target cache. An invalid key
// is logged and returned as pushbullet.ErrInvalidKey; no service is created.
func New(
	ctx context.Context,
	client dispatch.ProviderClient,
	paths dispatch.PathChecker,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		client:       client,
		paths:        paths,
		defaultTitle: DefaultTitle,
		logger:       logger.With("component", "PushbulletDispatcher"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.directory == nil {
		s.directory = targets.NewCache(client, logger)
	}

	if _, err := client.Me(ctx); err != nil {
		if errors.Is(err, pushbullet.ErrInvalidKey) {
			s.logger.Error("Wrong API key supplied")
			return nil, err
		}
		return nil, fmt.Errorf("failed to verify api key: %w", err)
	}
	if err := s.directory.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("initial target refresh failed: %w", err)
	}
	return s, nil
}

// Refresh reloads devices and channels from the provider.
func (s *Service) Refresh(ctx context.Context) error {
	return s.directory.Refresh(ctx)
}

// Targets lists the currently cached target names.
func (s *Service) Targets() targets.Snapshot {
	return s.directory.Snapshot()
}

// Send delivers req to each of its targets in order. Per-target problems are
// logged and recorded in the report; they never stop the remaining targets.
// Without targets the push goes to every device on the account, and a
// failed push is returned as the error.
func (s *Service) Send(ctx context.Context, req Request) (Report, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	log := s.logger.With("request_id", req.ID)
	report := Report{RequestID: req.ID}
	c := s.contentFor(req)

	if len(req.Targets) == 0 {
		err := s.deliver(ctx, log, targets.Broadcast(), c)
		if errors.Is(err, ErrEmptyFile) {
			report.Outcomes = append(report.Outcomes, failed("self", err))
			return report, nil
		}
		if err != nil {
			return report, err
		}
		log.Info("Sent notification to self")
		report.Outcomes = append(report.Outcomes, Outcome{Target: "self", Status: StatusDelivered})
		return report, nil
	}

	refreshed := false
	for _, raw := range req.Targets {
		report.Outcomes = append(report.Outcomes, s.sendTo(ctx, log, raw, c, &refreshed))
	}
	return report, nil
}

func (s *Service) sendTo(ctx context.Context, log *slog.Logger, raw string, c content, refreshed *bool) Outcome {
	t, err := targets.Parse(raw)
	if err != nil {
		log.Error("Invalid target syntax", "target", raw)
		return skipped(raw, "invalid target syntax")
	}

	var recipient targets.Recipient
	switch {
	case t.Kind == targets.KindEmail:
		recipient = targets.Email(t.Name)
	case t.Kind.Cached():
		r, ok := s.resolve(ctx, log, t, refreshed)
		if !ok {
			log.Error("No such target", "target", string(t.Kind)+"/"+strings.ToLower(t.Name))
			return skipped(raw, "no such target")
		}
		recipient = r
	default:
		log.Error("Invalid target syntax", "target", raw)
		return skipped(raw, "invalid target syntax")
	}

	if err := s.deliver(ctx, log, recipient, c); err != nil {
		return failed(raw, err)
	}
	log.Info("Sent notification", "target", recipient.String())
	return Outcome{Target: raw, Status: StatusDelivered}
}

// resolve looks a target up, refreshing the cache at most once per Send.
func (s *Service) resolve(ctx context.Context, log *slog.Logger, t targets.Target, refreshed *bool) (targets.Recipient, bool) {
	if r, ok := s.directory.Lookup(t.Kind, t.Name); ok {
		return r, true
	}
	if *refreshed {
		return targets.Recipient{}, false
	}
	*refreshed = true
	if err := s.directory.Refresh(ctx); err != nil {
		log.Error("Target refresh failed", "err", err)
		return targets.Recipient{}, false
	}
	return s.directory.Lookup(t.Kind, t.Name)
}

func skipped(target, reason string) Outcome {
	return Outcome{Target: target, Status: StatusSkipped, Reason: reason}
}

func failed(target string, err error) Outcome {
	return Outcome{Target: target, Status: StatusFailed, Reason: err.Error()}
}
