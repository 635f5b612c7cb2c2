// Package draft stages an approver's in-progress scores per (evaluation,
// role) until the approval is submitted. Entries are best effort: they expire
// after a day and are never the source of truth.
package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

const (
	keyPrefix = "draft_scores_"

	DefaultTTL = 24 * time.Hour
)

// Roles that keep drafts.
const (
	ClassMonitor = "CLASS_MONITOR"
	Advisor      = "ADVISOR"
)

var Roles = []string{ClassMonitor, Advisor}

// Store is the key-value arena the cache writes to.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Entry is the stored form; Scores are keyed "<criterionId>_<subId>".
type Entry struct {
	EvaluationID int64              `json:"evaluationId"`
	Role         string             `json:"role"`
	Scores       map[string]float64 `json:"scores"`
	Timestamp    int64              `json:"timestamp"` // unix millis
}

type Cache struct {
	store Store
	ttl   time.Duration
	Now   func() time.Time // mockable
}

func New(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, Now: time.Now}
}

func Key(evaluationID int64, role string) string {
	return fmt.Sprintf("%s%d_%s", keyPrefix, evaluationID, role)
}

func (c *Cache) Save(ctx context.Context, evaluationID int64, role string, scores map[string]float64) error {
	b, err := json.Marshal(Entry{
		EvaluationID: evaluationID,
		Role:         role,
		Scores:       scores,
		Timestamp:    c.Now().UnixMilli(),
	})
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	if err := c.store.Set(ctx, Key(evaluationID, role), b, c.ttl); err != nil {
		return errors.Wrapf(err, "saving draft %d/%s", evaluationID, role)
	}
	return nil
}

// Load returns the staged scores, or ok == false when there are none. Stale
// or unreadable entries are removed and reported as missing.
func (c *Cache) Load(ctx context.Context, evaluationID int64, role string) (map[string]float64, bool, error) {
	key := Key(evaluationID, role)
	b, found, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, false, errors.Wrapf(err, "loading draft %d/%s", evaluationID, role)
	}
	if !found {
		return nil, false, nil
	}

	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, false, c.drop(ctx, key)
	}
	age := c.Now().Sub(time.UnixMilli(e.Timestamp))
	if age > c.ttl {
		return nil, false, c.drop(ctx, key)
	}
	if e.Scores == nil {
		e.Scores = map[string]float64{}
	}
	return e.Scores, true, nil
}

func (c *Cache) drop(ctx context.Context, key string) error {
	return errors.Wrapf(c.store.Delete(ctx, key), "dropping draft %s", key)
}

func (c *Cache) Clear(ctx context.Context, evaluationID int64, role string) error {
	return errors.Wrapf(c.store.Delete(ctx, Key(evaluationID, role)), "clearing draft %d/%s", evaluationID, role)
}

// ClearEvaluation removes the drafts of every drafting role.
func (c *Cache) ClearEvaluation(ctx context.Context, evaluationID int64) error {
	for _, role := range Roles {
		if err := c.Clear(ctx, evaluationID, role); err != nil {
			return err
		}
	}
	return nil
}
