package statemanager

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukassojak/Smart-Irrigation-System/internal/events"
	"github.com/lukassojak/Smart-Irrigation-System/internal/model"
)

func configs() []model.CircuitConfig {
	return []model.CircuitConfig{
		{ID: 1, Name: "front", Enabled: true},
		{ID: 2, Name: "back", Enabled: false},
	}
}

func TestInitFromDisk_CreatesFreshSnapshotsWhenFileMissing(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, zerolog.Nop())

	require.NoError(t, m.InitFromDisk(configs()))

	snap1, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, model.CircuitIdle, snap1.CircuitState)

	snap2, ok := m.Get(2)
	require.True(t, ok)
	assert.Equal(t, model.CircuitDisabled, snap2.CircuitState)
}

func TestInitFromDisk_RecoversUncleanShutdownAsInterrupted(t *testing.T) {
	dir := t.TempDir()

	existing := fileFormat{
		LastUpdated: time.Now(),
		Circuits: []model.Snapshot{
			{CircuitID: 1, CircuitState: model.CircuitIrrigating},
			{CircuitID: 2, CircuitState: model.CircuitDisabled},
		},
	}
	data, err := json.Marshal(existing)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotsFile), data, 0o644))

	m := New(dir, zerolog.Nop())
	require.NoError(t, m.InitFromDisk(configs()))

	snap, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, model.CircuitIdle, snap.CircuitState)
	require.NotNil(t, snap.LastOutcome)
	assert.Equal(t, model.OutcomeInterrupted, *snap.LastOutcome)
	assert.Equal(t, 0, snap.LastDurationS)

	logData, err := os.ReadFile(filepath.Join(dir, logFile))
	require.NoError(t, err)
	var entries []model.Result
	require.NoError(t, json.Unmarshal(logData, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, model.OutcomeInterrupted, entries[0].Outcome)
}

func TestInitFromDisk_CorruptFileRebuildsFromConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshotsFile), []byte("{not json"), 0o644))

	m := New(dir, zerolog.Nop())
	require.NoError(t, m.InitFromDisk(configs()))

	snap, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, model.CircuitIdle, snap.CircuitState)
}

func TestTransition_FollowsTable(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, zerolog.Nop())
	require.NoError(t, m.InitFromDisk(configs()))

	require.NoError(t, m.Transition(1, EventScheduled))
	snap, _ := m.Get(1)
	assert.Equal(t, model.CircuitWaiting, snap.CircuitState)

	require.NoError(t, m.Transition(1, EventStart))
	snap, _ = m.Get(1)
	assert.Equal(t, model.CircuitIrrigating, snap.CircuitState)

	require.NoError(t, m.Transition(1, EventComplete))
	snap, _ = m.Get(1)
	assert.Equal(t, model.CircuitIdle, snap.CircuitState)
	assert.Equal(t, model.OutcomeSuccess, *snap.LastOutcome)
}

func TestTransition_RejectsIllegalTransition(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, zerolog.Nop())
	require.NoError(t, m.InitFromDisk(configs()))

	err := m.Transition(1, EventComplete) // IDLE has no "complete" transition
	require.Error(t, err)
}

func TestRecordResult_SkippedPreservesPriorIrrigationValues(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, zerolog.Nop())
	require.NoError(t, m.InitFromDisk(configs()))

	start := time.Now().UTC()
	require.NoError(t, m.RecordResult(1, model.Result{
		CircuitID: 1, Outcome: model.OutcomeSuccess, StartTime: start, DurationS: 60, VolumeL: 5,
	}))

	require.NoError(t, m.RecordResult(1, model.Result{
		CircuitID: 1, Outcome: model.OutcomeSkipped, StartTime: time.Now().UTC(),
	}))

	snap, _ := m.Get(1)
	assert.Equal(t, model.OutcomeSkipped, *snap.LastOutcome)
	assert.Equal(t, 60, snap.LastDurationS)
	assert.Equal(t, 5.0, snap.LastVolumeL)
}

func TestRecordResult_AssignsUniqueEntryIDPerLogRecord(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, zerolog.Nop())
	require.NoError(t, m.InitFromDisk(configs()))

	require.NoError(t, m.RecordResult(1, model.Result{
		CircuitID: 1, Outcome: model.OutcomeSuccess, StartTime: time.Now().UTC(), DurationS: 10, VolumeL: 1,
	}))
	require.NoError(t, m.RecordResult(1, model.Result{
		CircuitID: 1, Outcome: model.OutcomeSuccess, StartTime: time.Now().UTC(), DurationS: 20, VolumeL: 2,
	}))

	entries, err := m.readLog(dir + "/" + logFile)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].EntryID)
	assert.NotEmpty(t, entries[1].EntryID)
	assert.NotEqual(t, entries[0].EntryID, entries[1].EntryID)
}

func TestPersist_ExhaustedRetriesEmitsPersistenceFatal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	m := New(dir, zerolog.Nop())

	bus := events.NewBus(zerolog.Nop())
	var got *events.Event
	bus.Subscribe(events.PersistenceFatal, func(e *events.Event) { got = e })
	m.SetBus(bus)

	err := m.InitFromDisk(configs())
	require.Error(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "persist_snapshots", got.Data["op"])
}

func TestShutdown_TransitionsActiveCircuitsToShutdown(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, zerolog.Nop())
	require.NoError(t, m.InitFromDisk(configs()))
	require.NoError(t, m.Transition(1, EventScheduled))

	require.NoError(t, m.Shutdown())

	snap, _ := m.Get(1)
	assert.Equal(t, model.CircuitShutdown, snap.CircuitState)
}

func TestPersist_WritesAreAtomicAndReloadable(t *testing.T) {
	dir := t.TempDir()
	m := New(dir, zerolog.Nop())
	require.NoError(t, m.InitFromDisk(configs()))
	require.NoError(t, m.Transition(1, EventScheduled))

	m2 := New(dir, zerolog.Nop())
	require.NoError(t, m2.InitFromDisk(configs()))

	snap, ok := m2.Get(1)
	require.True(t, ok)
	assert.Equal(t, model.CircuitWaiting, snap.CircuitState)
}
