// Package notifier delivers fulfillment notifications to requesters over
// Web Push. Delivery is best-effort: failures are logged, never propagated
// to the reconciliation path that triggered them.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"

	"overlite/internal/models"
	"overlite/internal/store"
	"overlite/internal/tmdb"
	"overlite/internal/webpush"
)

// PushSender is satisfied by webpush.Sender.
type PushSender interface {
	Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error
}

type Notifier struct {
	store  *store.Store
	sender PushSender
}

// New builds a Notifier. A nil sender disables delivery (no VAPID keys
// configured); NotifyFulfilled then always reports false.
func New(s *store.Store, sender PushSender) *Notifier {
	return &Notifier{store: s, sender: sender}
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
	Icon  string `json:"icon,omitempty"`
	Image string `json:"image,omitempty"`
}

// NotifyFulfilled tells the requester their request landed in the library.
// Returns whether a notification was actually delivered. Stale
// subscriptions (endpoint 404/410) are deleted on the spot.
func (n *Notifier) NotifyFulfilled(ctx context.Context, req *models.Request) bool {
	if n.sender == nil || req.RequestedBy == "" {
		return false
	}

	sub, err := n.store.GetPushSubscription(req.RequestedBy)
	if err != nil {
		log.Printf("notifier: loading subscription for %q: %v", req.RequestedBy, err)
		return false
	}
	if sub == nil {
		return false
	}

	kind := "Movie"
	if req.MediaType == string(models.MediaTypeTV) {
		kind = "TV Show"
	}
	payload := pushPayload{
		Title: kind + " Available",
		Body:  req.Title + " has been added to the library!",
		Tag:   "fulfilled-" + req.MediaType + "-" + strconv.FormatInt(req.TMDBID, 10),
		Icon:  tmdb.ImageURL("w92", req.PosterPath),
		Image: tmdb.ImageURL("w300", req.PosterPath),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notifier: encoding payload: %v", err)
		return false
	}

	if err := n.sender.Send(ctx, sub, body); err != nil {
		if errors.Is(err, webpush.ErrSubscriptionGone) {
			if delErr := n.store.DeletePushSubscription(req.RequestedBy); delErr != nil {
				log.Printf("notifier: pruning stale subscription for %q: %v", req.RequestedBy, delErr)
			} else {
				log.Printf("notifier: pruned stale subscription for %q", req.RequestedBy)
			}
			return false
		}
		log.Printf("notifier: sending to %q: %v", req.RequestedBy, err)
		return false
	}
	return true
}
