//go:build linux

package watcher

import (
	"fmt"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"github.com/xfajk/comp-gate/internal/oserr"
)

type linuxWatcher struct {
	events chan ConnectionEvent
	done   chan error
	stop   chan struct{}
	once   sync.Once

	// terminal state latched by Poll after done fires, so repeated
	// polls keep reporting the same outcome.
	finished    bool
	finishedErr error
}

func newWatcher() DeviceWatcher {
	return &linuxWatcher{
		events: make(chan ConnectionEvent, 16),
		done:   make(chan error, 1),
		stop:   make(chan struct{}),
	}
}

func (w *linuxWatcher) Start() error {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return fmt.Errorf("connect to udev netlink: %w", err)
	}

	queue := make(chan netlink.UEvent)
	errCh := make(chan error)
	quit := conn.Monitor(queue, errCh, nil)

	go func() {
		defer conn.Close()
		for {
			select {
			case <-w.stop:
				close(quit)
				w.done <- nil
				return
			case err := <-errCh:
				w.done <- fmt.Errorf("udev monitor: %w", err)
				return
			case uevent := <-queue:
				w.publish(uevent)
			}
		}
	}()
	return nil
}

func (w *linuxWatcher) publish(uevent netlink.UEvent) {
	switch uevent.Env["SUBSYSTEM"] {
	case "usb", "hid":
	default:
		return
	}
	path := uevent.Env["DEVPATH"]
	if path == "" {
		return
	}

	var ev ConnectionEvent
	switch uevent.Action {
	case "add":
		ev = ConnectionEvent{Action: Connected, DevicePath: path}
	case "remove":
		ev = ConnectionEvent{Action: Disconnected, DevicePath: path}
	default:
		return
	}

	// With a full buffer and no consumer left, a plain send would keep
	// the source goroutine from ever seeing the stop request.
	select {
	case w.events <- ev:
	case <-w.stop:
	}
}

func (w *linuxWatcher) Events() <-chan ConnectionEvent { return w.events }

func (w *linuxWatcher) Done() <-chan error { return w.done }

func (w *linuxWatcher) Poll() (ConnectionEvent, error) {
	if !w.finished {
		select {
		case err := <-w.done:
			w.finished = true
			w.finishedErr = err
		default:
		}
	}
	if w.finished {
		if w.finishedErr != nil {
			return ConnectionEvent{}, fmt.Errorf("hotplug source failed: %w", w.finishedErr)
		}
		return ConnectionEvent{}, oserr.ErrSourceFinished
	}

	select {
	case ev := <-w.events:
		return ev, nil
	default:
		return ConnectionEvent{}, oserr.ErrNoEvent
	}
}

func (w *linuxWatcher) Stop() {
	w.once.Do(func() { close(w.stop) })
}
