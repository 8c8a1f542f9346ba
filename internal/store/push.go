package store

import (
	"fmt"

	"overlite/internal/models"
)

// Push subscriptions live in the "PUSH" partition keyed by user name, one
// active subscription per name; re-subscribing overwrites.

const pushPartition = "PUSH"

func (s *Store) SavePushSubscription(userName string, sub *models.PushSubscription) error {
	item := Item{
		"endpoint": sub.Endpoint,
		"keys": map[string]any{
			"p256dh": sub.Keys.P256dh,
			"auth":   sub.Keys.Auth,
		},
	}
	if err := s.PutItem(pushPartition, userName, item, nil); err != nil {
		return fmt.Errorf("saving push subscription: %w", err)
	}
	return nil
}

// GetPushSubscription returns nil when the user has no subscription.
func (s *Store) GetPushSubscription(userName string) (*models.PushSubscription, error) {
	item, err := s.GetItem(pushPartition, userName)
	if err != nil {
		return nil, fmt.Errorf("getting push subscription: %w", err)
	}
	if item == nil {
		return nil, nil
	}
	sub := &models.PushSubscription{Endpoint: stringAttr(item, "endpoint")}
	if keys, ok := item["keys"].(map[string]any); ok {
		if v, ok := keys["p256dh"].(string); ok {
			sub.Keys.P256dh = v
		}
		if v, ok := keys["auth"].(string); ok {
			sub.Keys.Auth = v
		}
	}
	return sub, nil
}

func (s *Store) DeletePushSubscription(userName string) error {
	if _, err := s.DeleteItem(pushPartition, userName); err != nil {
		return fmt.Errorf("deleting push subscription: %w", err)
	}
	return nil
}
