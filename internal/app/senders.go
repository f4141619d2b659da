package app

import (
	"github.com/MrSnakeDoc/staywatch/internal/config"
	"github.com/MrSnakeDoc/staywatch/internal/notify"
)

// buildSenders returns one sender per configured channel, pushover first.
func buildSenders(f *config.File) ([]notify.Sender, error) {
	var senders []notify.Sender
	if f.PushoverEnabled() {
		p := f.Notifications.Pushover
		senders = append(senders, notify.NewPushover(notify.PushoverConfig{
			Token:   p.Token,
			User:    p.User,
			Devices: p.Device,
		}))
	}
	if f.DiscordEnabled() {
		d, err := notify.NewDiscord(f.Notifications.Discord.Webhooks)
		if err != nil {
			return nil, err
		}
		senders = append(senders, d)
	}
	return senders, nil
}
