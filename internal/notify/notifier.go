// Package notify turns new ads into one digest per search and delivers it
// to every recipient of every configured sender.
package notify

import (
	"context"

	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/staywatch/internal/domain"
	"github.com/MrSnakeDoc/staywatch/internal/logger"
)

// Sender delivers a message to one recipient of a channel.
type Sender interface {
	Name() string
	// Recipients lists the addressable targets. It is called once, when the
	// Notifier is built. An empty string addresses every target at once.
	Recipients(ctx context.Context) ([]string, error)
	Send(ctx context.Context, msg Message, recipient string) error
}

type Options struct {
	// MaxListed caps the ads listed in one digest (0 = no cap).
	MaxListed int
}

type target struct {
	sender     Sender
	recipients []string
}

type Notifier struct {
	targets []target
	opts    Options
	logger  logger.Logger
}

// New resolves the recipients of every sender. A sender whose recipients
// cannot be resolved falls back to the broadcast recipient.
func New(ctx context.Context, senders []Sender, opts Options, log logger.Logger) *Notifier {
	n := &Notifier{opts: opts, logger: log}
	for _, s := range senders {
		recipients, err := s.Recipients(ctx)
		if err != nil {
			log.Warn("failed to resolve recipients, broadcasting instead",
				logger.String("sender", s.Name()),
				logger.Error(err))
			recipients = nil
		}
		if len(recipients) == 0 {
			recipients = []string{""}
		}
		log.Debug("notification sender ready",
			logger.String("sender", s.Name()),
			logger.Int("recipients", len(recipients)))
		n.targets = append(n.targets, target{sender: s, recipients: recipients})
	}
	return n
}

// Senders returns the configured sender names.
func (n *Notifier) Senders() []string {
	names := make([]string, 0, len(n.targets))
	for _, t := range n.targets {
		names = append(names, t.sender.Name())
	}
	return names
}

// Notify sends one digest for the event. An event without ads sends nothing.
// Every failed delivery is returned as a *domain.NotificationDispatchError,
// combined with multierr; successful deliveries are not rolled back.
func (n *Notifier) Notify(ctx context.Context, event domain.NotificationEvent) error {
	if len(event.Ads) == 0 {
		return nil
	}

	msg := Compose(event, n.opts.MaxListed)
	var errs error
	sent := 0
	for _, t := range n.targets {
		for _, r := range t.recipients {
			if err := ctx.Err(); err != nil {
				return multierr.Append(errs, err)
			}
			if err := t.sender.Send(ctx, msg, r); err != nil {
				errs = multierr.Append(errs, &domain.NotificationDispatchError{
					Sender:    t.sender.Name(),
					Recipient: r,
					Err:       err,
				})
				continue
			}
			sent++
		}
	}

	n.logger.Info("notification dispatched",
		logger.String("search", event.SearchName),
		logger.Int("new_ads", len(event.Ads)),
		logger.Int("delivered", sent),
		logger.Int("failed", len(multierr.Errors(errs))))
	return errs
}
