package store

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ReapExpired deletes every item whose ttl has passed. Expired items are
// already invisible to reads; this reclaims their rows.
func (s *Store) ReapExpired() (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM items WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		time.Now().UTC().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("reaping expired items: %w", err)
	}
	return result.RowsAffected()
}

// StartReaper runs ReapExpired on the interval until ctx is done.
func (s *Store) StartReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.ReapExpired(); err != nil {
				log.Printf("ttl reaper: %v", err)
			} else if n > 0 {
				log.Printf("ttl reaper: reclaimed %d items", n)
			}
		}
	}
}
