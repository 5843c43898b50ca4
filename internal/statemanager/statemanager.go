// Package statemanager implements the circuit state manager (C5): durable
// per-circuit snapshots in zones_state.json, an append-only
// irrigation_log.json, and the per-circuit state machine transition table.
// All state mutations funnel through a single mutex; nothing else writes
// either file.
package statemanager

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lukassojak/Smart-Irrigation-System/internal/events"
	"github.com/lukassojak/Smart-Irrigation-System/internal/ierrors"
	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
)

const (
	snapshotsFile = "zones_state.json"
	logFile       = "irrigation_log.json"

	persistRetries = 3
	persistBackoff = 500 * time.Millisecond
)

// Event names the per-circuit state machine transitions (§4.5).
type Event string

const (
	EventConfigEnabled  Event = "config_enabled"
	EventConfigDisabled Event = "config_disabled"
	EventScheduled      Event = "scheduled"
	EventSkipDecision   Event = "skip_decision"
	EventStart          Event = "start"
	EventCancelTimeout  Event = "cancel_or_timeout"
	EventComplete       Event = "complete"
	EventStop           Event = "stop"
	EventInterrupt      Event = "interrupt"
	EventFault          Event = "fault"
	EventShutdown       Event = "shutdown"
)

// fileFormat is the on-disk shape of zones_state.json (§6: an object with
// last_updated and an array of snapshots under "circuits", not a map).
type fileFormat struct {
	LastUpdated time.Time        `json:"last_updated"`
	Circuits    []model.Snapshot `json:"circuits"`
}

// Manager owns zones_state.json and irrigation_log.json under dataDir.
type Manager struct {
	dataDir string
	log     zerolog.Logger

	mu        sync.Mutex
	snapshots map[int]model.Snapshot
	bus       *events.Bus
}

// New builds a Manager rooted at dataDir. Call InitFromDisk before using it.
func New(dataDir string, log zerolog.Logger) *Manager {
	return &Manager{
		dataDir: dataDir,
		log:     log.With().Str("component", "state_manager").Logger(),
		snapshots: make(map[int]model.Snapshot),
	}
}

// SetBus wires the event bus used to announce a PersistenceFatal once the
// retry budget in persist/appendLog is exhausted. Optional: a Manager with no
// bus still returns PersistenceError to its caller, it just cannot drive the
// controller into ERROR on its own.
func (m *Manager) SetBus(bus *events.Bus) {
	m.bus = bus
}

func (m *Manager) emitPersistenceFatal(op string, err error) {
	if m.bus == nil {
		return
	}
	m.bus.Emit(events.PersistenceFatal, "state_manager", map[string]interface{}{
		"op":    op,
		"error": err.Error(),
	})
}

// InitFromDisk loads zones_state.json, creating fresh snapshots for any
// configured circuit missing from the file, and recovers any snapshot left
// in IRRIGATING from an unclean shutdown as INTERRUPTED (§4.5
// init_from_disk).
func (m *Manager) InitFromDisk(configs []model.CircuitConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	loaded, err := m.readSnapshots()
	if err != nil {
		m.log.Warn().Err(err).Msg("zones_state.json unreadable or corrupt, rebuilding from config")
		loaded = make(map[int]model.Snapshot)
	}

	now := time.Now().UTC()

	for _, cfg := range configs {
		snap, ok := loaded[cfg.ID]
		if !ok {
			state := model.CircuitIdle
			if !cfg.Enabled {
				state = model.CircuitDisabled
			}
			loaded[cfg.ID] = model.Snapshot{CircuitID: cfg.ID, CircuitState: state}
			continue
		}

		if snap.CircuitState == model.CircuitIrrigating {
			interrupted := model.OutcomeInterrupted
			recoveredState := model.CircuitIdle
			if !cfg.Enabled {
				recoveredState = model.CircuitDisabled
			}
			snap.CircuitState = recoveredState
			snap.LastOutcome = &interrupted
			snap.LastIrrigation = &now
			snap.LastDurationS = 0
			snap.LastVolumeL = 0
			snap.LastDecision = &now
			loaded[cfg.ID] = snap

			if err := m.appendLog(model.Result{
				CircuitID: cfg.ID,
				Success:   false,
				Outcome:   model.OutcomeInterrupted,
				StartTime: now,
			}); err != nil {
				return err
			}
		}
	}

	m.snapshots = loaded
	return m.persist()
}

// Get returns the current snapshot for circuit_id.
func (m *Manager) Get(circuitID int) (model.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[circuitID]
	return snap.Clone(), ok
}

// All returns a copy of every snapshot, keyed by circuit id.
func (m *Manager) All() map[int]model.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]model.Snapshot, len(m.snapshots))
	for id, snap := range m.snapshots {
		out[id] = snap.Clone()
	}
	return out
}

// Transition applies event to circuitID's state machine per the table in
// §4.5, recording outcome where the table specifies one. It rejects
// transitions not present in the table with *ierrors.IllegalStateTransition
// and does not mutate the snapshot in that case.
func (m *Manager) Transition(circuitID int, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[circuitID]
	if !ok {
		return &ierrors.IllegalStateTransition{CircuitID: circuitID, From: "unknown", Event: string(event)}
	}

	next, outcome, err := nextState(snap.CircuitState, event)
	if err != nil {
		return err
	}

	snap.CircuitState = next
	if outcome != nil {
		snap.LastOutcome = outcome
	}
	m.snapshots[circuitID] = snap

	return m.persist()
}

func nextState(from model.CircuitState, event Event) (model.CircuitState, *model.Outcome, error) {
	outcome := func(o model.Outcome) *model.Outcome { return &o }

	if event == EventShutdown {
		return model.CircuitShutdown, nil, nil
	}

	switch from {
	case model.CircuitDisabled:
		if event == EventConfigEnabled {
			return model.CircuitIdle, nil, nil
		}
	case model.CircuitIdle:
		switch event {
		case EventConfigDisabled:
			return model.CircuitDisabled, nil, nil
		case EventScheduled:
			return model.CircuitWaiting, nil, nil
		case EventSkipDecision:
			return model.CircuitIdle, outcome(model.OutcomeSkipped), nil
		case EventStart:
			return model.CircuitIrrigating, nil, nil
		}
	case model.CircuitWaiting:
		switch event {
		case EventStart:
			return model.CircuitIrrigating, nil, nil
		case EventCancelTimeout:
			return model.CircuitIdle, outcome(model.OutcomeFailed), nil
		}
	case model.CircuitIrrigating:
		switch event {
		case EventComplete:
			return model.CircuitIdle, outcome(model.OutcomeSuccess), nil
		case EventStop:
			return model.CircuitIdle, outcome(model.OutcomeStopped), nil
		case EventInterrupt:
			return model.CircuitIdle, outcome(model.OutcomeInterrupted), nil
		case EventFault:
			return model.CircuitIdle, outcome(model.OutcomeFailed), nil
		}
	}

	return from, nil, &ierrors.IllegalStateTransition{From: string(from), Event: string(event)}
}

// RecordDecision updates last_decision only (§4.5).
func (m *Manager) RecordDecision(circuitID int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[circuitID]
	if !ok {
		return &ierrors.IllegalStateTransition{CircuitID: circuitID, From: "unknown", Event: "record_decision"}
	}
	t := now.UTC()
	snap.LastDecision = &t
	m.snapshots[circuitID] = snap
	return m.persist()
}

// RecordResult updates last_outcome/last_irrigation/last_duration/last_volume
// (preserving the prior real-irrigation values when outcome is SKIPPED) and
// appends the result to irrigation_log.json (§4.5 record_result).
func (m *Manager) RecordResult(circuitID int, result model.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap, ok := m.snapshots[circuitID]
	if !ok {
		return &ierrors.IllegalStateTransition{CircuitID: circuitID, From: "unknown", Event: "record_result"}
	}

	outcome := result.Outcome
	snap.LastOutcome = &outcome
	if outcome != model.OutcomeSkipped {
		start := result.StartTime.UTC()
		snap.LastIrrigation = &start
		snap.LastDurationS = result.DurationS
		snap.LastVolumeL = result.VolumeL
	}
	m.snapshots[circuitID] = snap

	if err := m.appendLog(result); err != nil {
		return err
	}
	return m.persist()
}

// Shutdown transitions every IRRIGATING or WAITING snapshot to SHUTDOWN and
// flushes the snapshot file (§4.5 shutdown).
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, snap := range m.snapshots {
		if snap.CircuitState == model.CircuitIrrigating || snap.CircuitState == model.CircuitWaiting {
			snap.CircuitState = model.CircuitShutdown
			m.snapshots[id] = snap
		}
	}

	return m.persist()
}

// snapshotSlice converts the in-memory map into the on-disk array shape,
// ordered by circuit id ascending for a deterministic diff between writes.
func (m *Manager) snapshotSlice() []model.Snapshot {
	out := make([]model.Snapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CircuitID < out[j].CircuitID })
	return out
}

func (m *Manager) readSnapshots() (map[int]model.Snapshot, error) {
	path := filepath.Join(m.dataDir, snapshotsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[int]model.Snapshot), nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return make(map[int]model.Snapshot), nil
	}

	var parsed fileFormat
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	out := make(map[int]model.Snapshot, len(parsed.Circuits))
	for _, snap := range parsed.Circuits {
		out[snap.CircuitID] = snap
	}
	return out, nil
}

// persist writes zones_state.json atomically (write-temp + rename), with a
// bounded retry budget (§7: 3 attempts, exponential backoff). Must be called
// with m.mu held.
func (m *Manager) persist() error {
	payload := fileFormat{LastUpdated: time.Now().UTC(), Circuits: m.snapshotSlice()}

	var lastErr error
	for attempt := 1; attempt <= persistRetries; attempt++ {
		if err := m.writeAtomic(snapshotsFile, payload); err != nil {
			lastErr = err
			m.log.Warn().Err(err).Int("attempt", attempt).Msg("failed to persist zones_state.json")
			if attempt < persistRetries {
				time.Sleep(time.Duration(1<<(attempt-1)) * persistBackoff)
				continue
			}
			m.emitPersistenceFatal("persist_snapshots", lastErr)
			return &ierrors.PersistenceError{Op: "persist_snapshots", Err: lastErr}
		}
		return nil
	}
	m.emitPersistenceFatal("persist_snapshots", lastErr)
	return &ierrors.PersistenceError{Op: "persist_snapshots", Err: lastErr}
}

// appendLog appends one result record to irrigation_log.json. The log is a
// JSON array; it is read, appended to, and rewritten atomically, matching
// the same bounded-retry policy as snapshot persistence.
func (m *Manager) appendLog(result model.Result) error {
	path := filepath.Join(m.dataDir, logFile)

	if result.EntryID == "" {
		result.EntryID = uuid.NewString()
	}

	var lastErr error
	for attempt := 1; attempt <= persistRetries; attempt++ {
		entries, err := m.readLog(path)
		if err != nil {
			lastErr = err
		} else {
			entries = append(entries, result)
			if err := m.writeAtomic(logFile, entries); err != nil {
				lastErr = err
			} else {
				return nil
			}
		}

		m.log.Warn().Err(lastErr).Int("attempt", attempt).Msg("failed to append irrigation_log.json")
		if attempt < persistRetries {
			time.Sleep(time.Duration(1<<(attempt-1)) * persistBackoff)
		}
	}

	m.emitPersistenceFatal("append_log", lastErr)
	return &ierrors.PersistenceError{Op: "append_log", Err: lastErr}
}

func (m *Manager) readLog(path string) ([]model.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var entries []model.Result
	if err := json.Unmarshal(data, &entries); err != nil {
		m.log.Warn().Err(err).Msg("irrigation_log.json corrupt, starting a fresh log")
		return nil, nil
	}
	return entries, nil
}

// writeAtomic marshals v as JSON and writes it to dataDir/name via a
// temp-file-then-rename so a crash mid-write never leaves a truncated file.
func (m *Manager) writeAtomic(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	path := filepath.Join(m.dataDir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file for %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file for %s: %w", name, err)
	}
	return nil
}
