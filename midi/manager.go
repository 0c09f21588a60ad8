package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
	errgo "gopkg.in/errgo.v1"

	"go-motif/debug"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DefaultExcluded lists virtual/system ports that are never auto-connected.
var DefaultExcluded = []string{"Midi Through", "Through Port", "Dummy"}

// Options configures port selection for a DeviceManager.
type Options struct {
	// Preferred port name fragments (case-insensitive). When any port
	// matches, only matching ports are connected.
	Preferred []string
	// Excluded port name fragments (case-insensitive).
	Excluded []string
	// PollRate is the hot-plug rescan interval.
	PollRate time.Duration
	// OnDisconnect is called from the scan goroutine after a connected
	// port disappears, so the caller can release any hanging notes.
	OnDisconnect func(id string)
}

// DeviceManager handles hot-plug detection of MIDI keyboards
type DeviceManager struct {
	controllers map[string]*KeyboardController
	mu          sync.RWMutex
	events      chan DeviceEvent
	opts        Options
	handler     Handler
}

// NewDeviceManager creates a new device manager delivering messages to h
func NewDeviceManager(h Handler, opts Options) *DeviceManager {
	if opts.PollRate <= 0 {
		opts.PollRate = time.Second
	}
	if opts.Excluded == nil {
		opts.Excluded = DefaultExcluded
	}
	return &DeviceManager{
		controllers: make(map[string]*KeyboardController),
		events:      make(chan DeviceEvent, 16),
		opts:        opts,
		handler:     h,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controller IDs
func (dm *DeviceManager) Controllers() []string {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	ids := make([]string, 0, len(dm.controllers))
	for id := range dm.controllers {
		ids = append(ids, id)
	}
	return ids
}

// Start performs the initial scan. With require set, finding no usable
// input is a setup error whose cause is ErrNoPort.
func (dm *DeviceManager) Start(require bool) error {
	n := dm.scan()
	if n == 0 && require {
		return errgo.WithCausef(nil, ErrNoPort, "no MIDI input matched (preferred %q, excluded %q)", dm.opts.Preferred, dm.opts.Excluded)
	}
	return nil
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(dm.opts.PollRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return nil
		case <-ticker.C:
			dm.scan()
		}
	}
}

// scan connects new ports, drops vanished ones, and returns the number of
// connected controllers.
func (dm *DeviceManager) scan() int {
	log := debug.Logger("midi")

	// Get current MIDI ports with timeout (CoreMIDI can hang)
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- gomidi.GetInPorts()
	}()

	var inPorts []drivers.In
	select {
	case inPorts = <-ch:
	case <-time.After(3 * time.Second):
		log.Warn("port enumeration timed out, skipping scan")
		dm.mu.RLock()
		defer dm.mu.RUnlock()
		return len(dm.controllers)
	}

	names := make([]string, len(inPorts))
	for i, p := range inPorts {
		names[i] = p.String()
	}
	wanted := make(map[string]bool)
	for _, name := range SelectPorts(names, dm.opts.Preferred, dm.opts.Excluded) {
		wanted[name] = true
	}

	for _, inPort := range inPorts {
		id := inPort.String()
		if !wanted[id] {
			continue
		}
		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		kb, err := NewKeyboardController(id, inPort, dm.handler)
		if err != nil {
			log.Error("failed to connect", "port", id, "err", err)
			continue
		}
		log.Info("MIDI input connected", "port", id)

		dm.mu.Lock()
		dm.controllers[id] = kb
		dm.mu.Unlock()
		dm.emit(DeviceEvent{Type: DeviceConnected, Controller: kb, ID: id})
	}

	// Check for disconnects
	dm.mu.Lock()
	var removed []string
	for id, kb := range dm.controllers {
		lost := false
		select {
		case <-kb.Lost():
			lost = true
		default:
		}
		if !wanted[id] || lost {
			kb.Close()
			delete(dm.controllers, id)
			removed = append(removed, id)
		}
	}
	n := len(dm.controllers)
	dm.mu.Unlock()

	for _, id := range removed {
		log.Warn("MIDI input disappeared", "port", id)
		if dm.opts.OnDisconnect != nil {
			dm.opts.OnDisconnect(id)
		}
		dm.emit(DeviceEvent{Type: DeviceDisconnected, ID: id})
	}
	return n
}

// emit never blocks: a headless run has nobody reading events.
func (dm *DeviceManager) emit(ev DeviceEvent) {
	select {
	case dm.events <- ev:
	default:
	}
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]*KeyboardController)
}

// SelectPorts filters port names: excluded names are dropped; if any of the
// remaining names match a preferred fragment only those are kept.
func SelectPorts(names, preferred, excluded []string) []string {
	var eligible []string
	for _, name := range names {
		if !containsAny(name, excluded) {
			eligible = append(eligible, name)
		}
	}
	var picked []string
	for _, name := range eligible {
		if containsAny(name, preferred) {
			picked = append(picked, name)
		}
	}
	if len(picked) > 0 {
		return picked
	}
	return eligible
}

func containsAny(name string, fragments []string) bool {
	name = strings.ToLower(name)
	for _, f := range fragments {
		if f != "" && strings.Contains(name, strings.ToLower(f)) {
			return true
		}
	}
	return false
}
