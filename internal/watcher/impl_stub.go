//go:build !linux

package watcher

import (
	"errors"

	"github.com/xfajk/comp-gate/internal/oserr"
)

type stubWatcher struct{}

func newWatcher() DeviceWatcher { return stubWatcher{} }

func (stubWatcher) Start() error {
	return errors.New("hotplug watcher is not implemented on this platform")
}
func (stubWatcher) Events() <-chan ConnectionEvent { return nil }
func (stubWatcher) Done() <-chan error             { return nil }
func (stubWatcher) Poll() (ConnectionEvent, error) {
	return ConnectionEvent{}, oserr.ErrNoEvent
}
func (stubWatcher) Stop() {}
