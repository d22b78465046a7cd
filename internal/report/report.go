// Package report archives JSON run reports (loads, index demonstrations)
// in a blob store under reports/<kind>/<timestamp>-<run id>.json.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"persondir/internal/blob"
)

// Report kinds.
const (
	KindLoad      = "load"
	KindIndexDemo = "indexdemo"
	KindStats     = "stats"
)

const (
	keyPrefix   = "reports"
	stampLayout = "20060102T150405Z"
	contentType = "application/json"
)

// Envelope wraps a payload with the run identity.
type Envelope struct {
	RunID     uuid.UUID       `json:"run_id"`
	Kind      string          `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Archive writes reports through a blob.Store. A nil store disables
// archiving: Save becomes a no-op and List returns nothing.
type Archive struct {
	store  blob.Store
	now    func() time.Time
	newID  func() uuid.UUID
	logger *slog.Logger
}

// Option configures an Archive.
type Option func(*Archive)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Archive) {
		if now != nil {
			a.now = now
		}
	}
}

// WithIDs overrides run id generation.
func WithIDs(next func() uuid.UUID) Option {
	return func(a *Archive) {
		if next != nil {
			a.newID = next
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New returns an Archive over store.
func New(store blob.Store, opts ...Option) *Archive {
	a := &Archive{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.New,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Enabled reports whether reports are persisted.
func (a *Archive) Enabled() bool { return a != nil && a.store != nil }

// Save encodes payload and stores it under a fresh key. The returned Info
// is zero when archiving is disabled.
func (a *Archive) Save(ctx context.Context, kind string, payload any) (blob.Info, error) {
	if !a.Enabled() {
		return blob.Info{}, nil
	}
	if kind == "" || strings.ContainsAny(kind, "/\\") {
		return blob.Info{}, fmt.Errorf("report kind %q is invalid", kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode %s report: %w", kind, err)
	}
	env := Envelope{RunID: a.newID(), Kind: kind, CreatedAt: a.now().UTC(), Payload: raw}
	body, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode %s envelope: %w", kind, err)
	}
	key := fmt.Sprintf("%s/%s/%s-%s.json", keyPrefix, kind, env.CreatedAt.Format(stampLayout), env.RunID)
	info, err := a.store.Put(ctx, key, bytes.NewReader(body), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"kind": kind, "run_id": env.RunID.String()},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("archive %s report: %w", kind, err)
	}
	a.logger.Info("report archived", "kind", kind, "key", info.Key, "driver", string(a.store.Driver()))
	return info, nil
}

// List returns archived reports of kind, oldest first. An empty kind lists
// every report.
func (a *Archive) List(ctx context.Context, kind string) ([]blob.Info, error) {
	if !a.Enabled() {
		return nil, nil
	}
	prefix := keyPrefix + "/"
	if kind != "" {
		prefix += kind + "/"
	}
	return a.store.List(ctx, prefix)
}

// Load reads the envelope stored at key.
func (a *Archive) Load(ctx context.Context, key string) (Envelope, error) {
	if !a.Enabled() {
		return Envelope{}, errors.New("report archive disabled")
	}
	_, rc, err := a.store.Get(ctx, key)
	if err != nil {
		return Envelope{}, err
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return Envelope{}, fmt.Errorf("read %s: %w", key, err)
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return env, nil
}
