package domain

// NotificationEvent is what the notifier consumes for one search and one run.
// It is never persisted.
type NotificationEvent struct {
	SearchName string
	SearchURL  string
	Ads        []Ad // newly discovered, discovery order
}
