// Package whitelist is the access-policy engine: the set of device ids
// authorized to remain enabled, persisted through the secret store and
// enforced against the device tracker.
package whitelist

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/xfajk/comp-gate/internal/device"
	"github.com/xfajk/comp-gate/internal/secretstore"
	"github.com/xfajk/comp-gate/internal/sysutil"
	"github.com/xfajk/comp-gate/internal/tracker"
)

// FailurePolicy decides how an enforcement pass reacts to a device
// toggle failing.
type FailurePolicy int

const (
	// ContinueOnFailure logs each failure and finishes the pass; the
	// joined failures are returned at the end.
	ContinueOnFailure FailurePolicy = iota
	// AbortOnFailure stops the pass at the first failure.
	AbortOnFailure
)

type Whitelist struct {
	store   secretstore.Store
	service string
	account string
}

func New(store secretstore.Store, service, account string) *Whitelist {
	return &Whitelist{store: store, service: service, account: account}
}

// Load reads and decodes the persisted set of authorized device ids.
// Truncated records or invalid UTF-8 are corruption errors, never
// silently tolerated.
func (w *Whitelist) Load() (map[device.ID]struct{}, error) {
	blob, err := w.store.Get(w.service, w.account)
	if err != nil {
		return nil, fmt.Errorf("read whitelist from secret store: %w", err)
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(blob)))
	if err != nil {
		return nil, fmt.Errorf("corrupt whitelist data: %w", err)
	}
	return decodeSet(raw)
}

// Store encodes and persists the set of authorized device ids.
func (w *Whitelist) Store(set map[device.ID]struct{}) error {
	blob := hex.EncodeToString(encodeSet(set))
	if err := w.store.Set(w.service, w.account, []byte(blob)); err != nil {
		return fmt.Errorf("write whitelist to secret store: %w", err)
	}
	return nil
}

// Add authorizes a device id. The persisted set alone changes; the
// device's state changes only on the next enforcement pass.
func (w *Whitelist) Add(id device.ID) error {
	set, err := w.Load()
	if err != nil {
		return err
	}
	set[id] = struct{}{}
	return w.Store(set)
}

// Remove de-authorizes a device id; see Add for when it takes effect.
func (w *Whitelist) Remove(id device.ID) error {
	set, err := w.Load()
	if err != nil {
		return err
	}
	delete(set, id)
	return w.Store(set)
}

// Seed writes the currently tracked device set as the whitelist, but
// only when the store holds no entry yet. An existing blob is
// authoritative and survives restarts untouched.
func (w *Whitelist) Seed(t *tracker.Tracker) error {
	_, err := w.store.Get(w.service, w.account)
	if err == nil {
		return nil
	}
	if !errors.Is(err, secretstore.ErrNotFound) {
		return fmt.Errorf("read whitelist from secret store: %w", err)
	}

	set := make(map[device.ID]struct{}, t.Len())
	for dev := range t.All() {
		set[dev.ID] = struct{}{}
	}
	sysutil.LogSugar.Infof("seeding whitelist with %d currently connected devices", len(set))
	return w.Store(set)
}

// Apply enforces the policy: every tracked device is enabled when its
// id is authorized and disabled otherwise. Each toggle is an
// independent OS call; onFailure decides whether a failing toggle
// aborts the pass. A repeated pass is idempotent.
func (w *Whitelist) Apply(t *tracker.Tracker, onFailure FailurePolicy) error {
	set, err := w.Load()
	if err != nil {
		return err
	}

	var errs []error
	for dev := range t.All() {
		state := device.Disable
		if _, ok := set[dev.ID]; ok {
			state = device.Enable
		}
		if err := t.SetDeviceState(dev.ID, state); err != nil {
			err = fmt.Errorf("apply %s to %s: %w", state, dev.ID, err)
			if onFailure == AbortOnFailure {
				return err
			}
			sysutil.LogSugar.Warnf("whitelist apply: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
