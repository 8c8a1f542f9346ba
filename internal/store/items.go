package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrConditionFailed is returned when a conditional put or update finds its
// condition violated. Callers treat it as a normal outcome, not a failure.
var ErrConditionFailed = errors.New("condition failed")

const scanPageSize = 500

// updateRetries bounds the optimistic-concurrency loop in UpdateItem. Three
// consecutive version conflicts on a single key means something is badly
// wrong with the workload.
const updateRetries = 3

type condKind int

const (
	condNone condKind = iota
	condNotExists
	condExists
	condAttrAbsent
)

// Condition constrains a put or update. A nil *Condition imposes nothing.
type Condition struct {
	kind condKind
	attr string
}

// IfNotExists requires that no live item exists under the key.
func IfNotExists() *Condition {
	return &Condition{kind: condNotExists}
}

// IfExists requires that a live item exists under the key.
func IfExists() *Condition {
	return &Condition{kind: condExists}
}

// IfAttributeAbsent requires that the item exists and does not carry the
// named attribute.
func IfAttributeAbsent(attr string) *Condition {
	return &Condition{kind: condAttrAbsent, attr: attr}
}

// holds evaluates the condition against the current item; nil means the key
// is absent.
func (c *Condition) holds(current Item) bool {
	if c == nil {
		return true
	}
	switch c.kind {
	case condNotExists:
		return current == nil
	case condExists:
		return current != nil
	case condAttrAbsent:
		if current == nil {
			return false
		}
		_, ok := current[c.attr]
		return !ok
	}
	return true
}

type ReturnValues int

const (
	ReturnNone ReturnValues = iota
	ReturnUpdatedNew
	ReturnAllNew
)

// Update describes an atomic mutation. Either every assignment applies and
// the condition held, or nothing changes. An update on an absent key creates
// the item when the condition allows it.
type Update struct {
	Set         map[string]any
	SetIfAbsent map[string]any // applied only where the attribute is unset
	Add         map[string]int64
	Condition   *Condition
	Return      ReturnValues
}

// expiresAt extracts the TTL attribute, if any, as an absolute unix second.
func expiresAt(item Item) (int64, bool) {
	ttl, ok := item["ttl"].(int64)
	return ttl, ok
}

func expired(exp sql.NullInt64, now time.Time) bool {
	return exp.Valid && exp.Int64 <= now.Unix()
}

// GetItem fetches one item. Returns nil when the key is absent or the item's
// ttl has passed.
func (s *Store) GetItem(partition string, sort any) (Item, error) {
	sortKey, err := encodeSort(sort)
	if err != nil {
		return nil, err
	}
	var attrs string
	var exp sql.NullInt64
	err = s.db.QueryRow(
		`SELECT attrs, expires_at FROM items WHERE partition = ? AND sort = ?`,
		partition, sortKey,
	).Scan(&attrs, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if expired(exp, time.Now().UTC()) {
		return nil, nil
	}
	return decodeItem(attrs)
}

// PutItem writes an item wholesale. With IfNotExists it fails with
// ErrConditionFailed when a live item already occupies the key; an expired
// item does not count as occupying it.
func (s *Store) PutItem(partition string, sort any, item Item, cond *Condition) error {
	sortKey, err := encodeSort(sort)
	if err != nil {
		return err
	}
	attrs, err := encodeItem(item)
	if err != nil {
		return err
	}
	var exp any
	if ttl, ok := expiresAt(item); ok {
		exp = ttl
	}

	if cond == nil {
		_, err = s.db.Exec(`
			INSERT INTO items (partition, sort, attrs, expires_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(partition, sort) DO UPDATE SET
				attrs = excluded.attrs, expires_at = excluded.expires_at, version = version + 1`,
			partition, sortKey, attrs, exp,
		)
		if err != nil {
			return fmt.Errorf("putting item: %w", err)
		}
		return nil
	}
	if cond.kind != condNotExists {
		return fmt.Errorf("unsupported put condition")
	}

	for i := 0; i < updateRetries; i++ {
		result, err := s.db.Exec(`
			INSERT INTO items (partition, sort, attrs, expires_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(partition, sort) DO NOTHING`,
			partition, sortKey, attrs, exp,
		)
		if err != nil {
			return fmt.Errorf("putting item: %w", err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			return nil
		}
		// Occupied. An expired occupant is reclaimed and the insert retried.
		reclaimed, err := s.reclaimExpired(partition, sortKey)
		if err != nil {
			return err
		}
		if !reclaimed {
			return ErrConditionFailed
		}
	}
	return ErrConditionFailed
}

// reclaimExpired deletes the row under the key iff its ttl has passed.
func (s *Store) reclaimExpired(partition, sortKey string) (bool, error) {
	result, err := s.db.Exec(
		`DELETE FROM items WHERE partition = ? AND sort = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
		partition, sortKey, time.Now().UTC().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("reclaiming expired item: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// DeleteItem removes an item; the bool reports whether a live item existed.
func (s *Store) DeleteItem(partition string, sort any) (bool, error) {
	sortKey, err := encodeSort(sort)
	if err != nil {
		return false, err
	}
	result, err := s.db.Exec(
		`DELETE FROM items WHERE partition = ? AND sort = ? AND (expires_at IS NULL OR expires_at > ?)`,
		partition, sortKey, time.Now().UTC().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// DeletePartition removes every item in a partition. Used by library sync
// with the clear flag.
func (s *Store) DeletePartition(partition string) error {
	_, err := s.db.Exec(`DELETE FROM items WHERE partition = ?`, partition)
	if err != nil {
		return fmt.Errorf("deleting partition: %w", err)
	}
	return nil
}

// QueryItems returns the live items of one partition in sort order. The
// filter, when non-nil, is applied after the key match.
func (s *Store) QueryItems(partition string, filter func(Item) bool) ([]Item, error) {
	rows, err := s.db.Query(
		`SELECT attrs, expires_at FROM items WHERE partition = ? ORDER BY sort`,
		partition,
	)
	if err != nil {
		return nil, fmt.Errorf("querying partition: %w", err)
	}
	defer rows.Close()
	return collectItems(rows, filter)
}

// ScanItems iterates the whole keyspace in pages and returns every live item
// the filter accepts, all pages assembled.
func (s *Store) ScanItems(filter func(Item) bool) ([]Item, error) {
	var out []Item
	lastPartition, lastSort := "", ""
	for {
		rows, err := s.db.Query(`
			SELECT partition, sort, attrs, expires_at FROM items
			WHERE (partition, sort) > (?, ?)
			ORDER BY partition, sort LIMIT ?`,
			lastPartition, lastSort, scanPageSize,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning items: %w", err)
		}
		now := time.Now().UTC()
		n := 0
		for rows.Next() {
			var attrs string
			var exp sql.NullInt64
			if err := rows.Scan(&lastPartition, &lastSort, &attrs, &exp); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning row: %w", err)
			}
			n++
			if expired(exp, now) {
				continue
			}
			item, err := decodeItem(attrs)
			if err != nil {
				rows.Close()
				return nil, err
			}
			if filter == nil || filter(item) {
				out = append(out, item)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning items: %w", err)
		}
		rows.Close()
		if n < scanPageSize {
			return out, nil
		}
	}
}

func collectItems(rows *sql.Rows, filter func(Item) bool) ([]Item, error) {
	var out []Item
	now := time.Now().UTC()
	for rows.Next() {
		var attrs string
		var exp sql.NullInt64
		if err := rows.Scan(&attrs, &exp); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if expired(exp, now) {
			continue
		}
		item, err := decodeItem(attrs)
		if err != nil {
			return nil, err
		}
		if filter == nil || filter(item) {
			out = append(out, item)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	return out, nil
}

// UpdateItem applies an Update atomically via optimistic concurrency: the
// current row is read with its version, the new attribute set is computed in
// memory, and the write only lands if the version is unchanged. Conflicts
// retry; condition violations return ErrConditionFailed.
func (s *Store) UpdateItem(partition string, sort any, upd Update) (Item, error) {
	sortKey, err := encodeSort(sort)
	if err != nil {
		return nil, err
	}

	for i := 0; i < updateRetries; i++ {
		var attrs string
		var exp sql.NullInt64
		var version int64
		current := Item(nil)
		found := true
		err = s.db.QueryRow(
			`SELECT attrs, expires_at, version FROM items WHERE partition = ? AND sort = ?`,
			partition, sortKey,
		).Scan(&attrs, &exp, &version)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
		} else if err != nil {
			return nil, fmt.Errorf("reading item for update: %w", err)
		} else if expired(exp, time.Now().UTC()) {
			// reclaim below, then treat as absent
			if _, err := s.reclaimExpired(partition, sortKey); err != nil {
				return nil, err
			}
			found = false
		} else {
			current, err = decodeItem(attrs)
			if err != nil {
				return nil, err
			}
		}

		if !upd.Condition.holds(current) {
			return nil, ErrConditionFailed
		}

		next, changed := applyUpdate(current, upd)
		nextAttrs, err := encodeItem(next)
		if err != nil {
			return nil, err
		}
		var nextExp any
		if ttl, ok := expiresAt(next); ok {
			nextExp = ttl
		}

		if found {
			result, err := s.db.Exec(
				`UPDATE items SET attrs = ?, expires_at = ?, version = version + 1
				 WHERE partition = ? AND sort = ? AND version = ?`,
				nextAttrs, nextExp, partition, sortKey, version,
			)
			if err != nil {
				return nil, fmt.Errorf("updating item: %w", err)
			}
			if n, _ := result.RowsAffected(); n > 0 {
				return updateResult(next, changed, upd.Return), nil
			}
		} else {
			result, err := s.db.Exec(`
				INSERT INTO items (partition, sort, attrs, expires_at) VALUES (?, ?, ?, ?)
				ON CONFLICT(partition, sort) DO NOTHING`,
				partition, sortKey, nextAttrs, nextExp,
			)
			if err != nil {
				return nil, fmt.Errorf("inserting item on update: %w", err)
			}
			if n, _ := result.RowsAffected(); n > 0 {
				return updateResult(next, changed, upd.Return), nil
			}
		}
		// version moved or a concurrent insert won; re-read and retry
	}
	return nil, fmt.Errorf("updating item: too many concurrent modifications")
}

// applyUpdate computes the post-image and the set of touched attributes.
func applyUpdate(current Item, upd Update) (Item, map[string]bool) {
	next := make(Item, len(current)+len(upd.Set)+len(upd.Add))
	for k, v := range current {
		next[k] = v
	}
	changed := make(map[string]bool)
	for k, v := range upd.Set {
		next[k] = v
		changed[k] = true
	}
	for k, v := range upd.SetIfAbsent {
		if _, ok := next[k]; !ok {
			next[k] = v
			changed[k] = true
		}
	}
	for k, delta := range upd.Add {
		base, _ := next[k].(int64)
		next[k] = base + delta
		changed[k] = true
	}
	return next, changed
}

func updateResult(next Item, changed map[string]bool, ret ReturnValues) Item {
	switch ret {
	case ReturnAllNew:
		return next
	case ReturnUpdatedNew:
		out := make(Item, len(changed))
		for k := range changed {
			out[k] = next[k]
		}
		return out
	default:
		return nil
	}
}
