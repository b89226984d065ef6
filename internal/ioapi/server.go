package ioapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/xfajk/comp-gate/internal/device"
	"github.com/xfajk/comp-gate/internal/oserr"
	"github.com/xfajk/comp-gate/internal/sysutil"
	"github.com/xfajk/comp-gate/internal/tracker"
	"github.com/xfajk/comp-gate/internal/watcher"
	"github.com/xfajk/comp-gate/internal/whitelist"
)

// Server drives the daemon: it owns the listener, the device tracker,
// the policy engine and the hotplug source. Every mutation of the
// tracker and the whitelist happens on the Run goroutine, so IPC
// commands and hotplug events are strictly serialized against each
// other.
type Server struct {
	listener  net.Listener
	registry  device.Registry
	tracker   *tracker.Tracker
	whitelist *whitelist.Whitelist
	watcher   watcher.DeviceWatcher

	requests chan request
	logs     []string
	logLimit int

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

type request struct {
	conn net.Conn
	cmd  Command
}

func NewServer(
	ln net.Listener,
	reg device.Registry,
	trk *tracker.Tracker,
	wl *whitelist.Whitelist,
	dw watcher.DeviceWatcher,
	logLimit int,
) *Server {
	if logLimit <= 0 {
		logLimit = 256
	}
	return &Server{
		listener:  ln,
		registry:  reg,
		tracker:   trk,
		whitelist: wl,
		watcher:   dw,
		requests:  make(chan request, 16),
		logLimit:  logLimit,
		conns:     make(map[net.Conn]struct{}),
	}
}

// Addr is the listener's bound address.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Run serves until the hotplug source finishes (the only intentional
// exit besides ctx cancellation). Readiness-driven: each iteration
// services every queued command, then waits for the next command, one
// hotplug event, or the source's completion.
func (s *Server) Run(ctx context.Context) error {
	defer s.closeConnections()
	defer s.listener.Close()

	go s.acceptLoop(ctx)

	for {
	drain:
		for {
			select {
			case req := <-s.requests:
				s.dispatch(req)
			default:
				break drain
			}
		}

		select {
		case req := <-s.requests:
			s.dispatch(req)
		case ev := <-s.watcher.Events():
			s.handleHotplug(ev)
		case err := <-s.watcher.Done():
			if err != nil {
				return fmt.Errorf("hotplug source failed: %w", err)
			}
			sysutil.Log.Info("hotplug source finished, stopping event loop")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			sysutil.LogSugar.Warnf("accepting ioapi connection failed: %v", err)
			continue
		}
		go s.readLoop(ctx, conn)
	}
}

// readLoop decodes frames off one connection and queues the parsed
// commands. Malformed bodies are skipped silently and the connection
// stays open; any read error closes this connection only.
func (s *Server) readLoop(ctx context.Context, conn net.Conn) {
	s.trackConn(conn)
	defer s.untrackConn(conn)
	defer conn.Close()

	for {
		body, err := ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				sysutil.LogSugar.Warnf("reading from ioapi connection failed: %v", err)
			}
			return
		}
		cmd, err := ParseCommand(body)
		if err != nil {
			sysutil.LogSugar.Warnf("discarding request: %v", err)
			continue
		}
		select {
		case s.requests <- request{conn: conn, cmd: cmd}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) dispatch(req request) {
	var payload string
	switch req.cmd.Op {
	case OpGetDeviceList:
		payload = s.tracker.Render()
	case OpGetConnectionLogs:
		payload = strings.Join(s.logs, "\n")
	case OpEnableDevice:
		payload = s.setDeviceState(req.cmd.DeviceID, device.Enable)
	case OpDisableDevice:
		payload = s.setDeviceState(req.cmd.DeviceID, device.Disable)
	}
	if err := WriteFrame(req.conn, truncatePayload([]byte(payload))); err != nil {
		sysutil.LogSugar.Warnf("writing ioapi response failed: %v", err)
	}
}

// truncatePayload keeps a response within MaxFrameSize; the client's
// ReadFrame rejects anything larger. A huge device list loses its tail
// rather than the whole response.
func truncatePayload(payload []byte) []byte {
	if len(payload) <= MaxFrameSize {
		return payload
	}
	sysutil.LogSugar.Warnf("truncating %d byte response to the %d byte frame limit", len(payload), MaxFrameSize)
	return payload[:MaxFrameSize]
}

func (s *Server) setDeviceState(id device.ID, state device.State) string {
	sysutil.LogSugar.Infof("%s device %s", state, id)
	if err := s.tracker.SetDeviceState(id, state); err != nil {
		if state == device.Enable {
			return fmt.Sprintf("Enabling device failed: %v", err)
		}
		return fmt.Sprintf("Disabling device failed: %v", err)
	}

	// Keep the persisted policy in line with the operator's decision,
	// so the next enforcement pass does not undo it.
	if s.whitelist != nil {
		var err error
		if state == device.Enable {
			err = s.whitelist.Add(id)
		} else {
			err = s.whitelist.Remove(id)
		}
		if err != nil {
			sysutil.LogSugar.Warnf("recording %s of %s in whitelist failed: %v", state, id, err)
		}
	}

	if state == device.Enable {
		return "Device enabled."
	}
	return "Device disabled."
}

func (s *Server) handleHotplug(ev watcher.ConnectionEvent) {
	id := device.DevicePathToDeviceID(ev.DevicePath)

	switch ev.Action {
	case watcher.Connected:
		s.logConnection(fmt.Sprintf("USB device connected: %s", id))
		if err := s.tracker.Insert(s.registry, id); err != nil {
			if errors.Is(err, oserr.ErrHubFiltered) {
				sysutil.LogSugar.Debugf("hub device %s not tracked", id)
			} else {
				sysutil.LogSugar.Warnf("inserting device %s failed: %v", id, err)
			}
			return
		}
		sysutil.LogSugar.Infof("device %s inserted, now tracking %d devices", id, s.tracker.Len())
	case watcher.Disconnected:
		s.logConnection(fmt.Sprintf("USB device disconnected: %s", id))
		dev, ok := s.tracker.Remove(id)
		if !ok {
			sysutil.LogSugar.Debugf("device %s was not tracked", id)
			return
		}
		dev.Close()
		sysutil.LogSugar.Infof("device %s removed, now tracking %d devices", id, s.tracker.Len())
	}
}

func (s *Server) logConnection(line string) {
	sysutil.Log.Info(line)
	s.logs = append(s.logs, line)
	if len(s.logs) > s.logLimit {
		s.logs = s.logs[len(s.logs)-s.logLimit:]
	}
}

func (s *Server) trackConn(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackConn(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}
