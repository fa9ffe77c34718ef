package store

import (
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mindloom/nudged/internal/state"
)

// knownKeys are the top-level snapshot fields this version understands.
// Anything else in the persisted blob is carried through verbatim on save,
// so newer snapshots survive a round trip through an older build.
var knownKeys = map[string]bool{
	"lastNextTaskRequest":  true,
	"lastMomentumPrompt":   true,
	"lastCompletionPrompt": true,
	"completionRecords":    true,
	"stopForNow":           true,
	"activeTask":           true,
	"checkinSnoozedDay":    true,
	"snoozes":              true,
	"lastSessionEnded":     true,
	"settings":             true,
}

// Store is the sole authority for reminder state across sessions. Load never
// fails outward: malformed or missing data is replaced field by field with
// defaults. Save is best-effort; a failed write is logged and swallowed.
type Store struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
	state   state.ReminderState
	extra   map[string]json.RawMessage
	loaded  bool
}

func New(backend Backend, logger *zap.Logger, now func() time.Time) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Store{backend: backend, logger: logger, now: now}
}

// Load reads the persisted snapshot, merging each valid top-level key over
// the defaults. It is called once per session; later calls return the
// in-memory state.
func (s *Store) Load() state.ReminderState {
	if s.loaded {
		return s.state
	}
	s.loaded = true
	s.state = state.Defaults()
	s.extra = map[string]json.RawMessage{}

	raw, err := s.backend.Read()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("snapshot read failed, starting from defaults", zap.Error(err))
		}
		return s.state
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		s.logger.Warn("snapshot is not valid JSON, starting from defaults", zap.Error(err))
		return s.state
	}

	decode := func(key string, dst any) {
		v, ok := doc[key]
		if !ok {
			return
		}
		if err := json.Unmarshal(v, dst); err != nil {
			s.logger.Warn("snapshot field malformed, keeping default",
				zap.String("field", key), zap.Error(err))
		}
	}
	decode("lastNextTaskRequest", &s.state.LastNextTaskRequest)
	decode("lastMomentumPrompt", &s.state.LastMomentumPrompt)
	decode("lastCompletionPrompt", &s.state.LastCompletionPrompt)
	decode("completionRecords", &s.state.CompletionRecords)
	decode("stopForNow", &s.state.StopForNow)
	decode("activeTask", &s.state.ActiveTask)
	decode("checkinSnoozedDay", &s.state.CheckinSnoozedDay)
	decode("snoozes", &s.state.Snoozes)
	decode("lastSessionEnded", &s.state.LastSessionEnded)
	// Settings is pre-seeded with defaults, so absent fields stay defaulted.
	decode("settings", &s.state.Settings)

	for key, v := range doc {
		if !knownKeys[key] {
			s.extra[key] = v
		}
	}

	s.state.Normalize(s.now())
	return s.state
}

// State returns the current in-memory snapshot, loading it first if needed.
func (s *Store) State() state.ReminderState {
	return s.Load()
}

// Save persists the whole snapshot as one blob, unioning preserved unknown
// fields back in. Failures are swallowed; the session continues in memory.
func (s *Store) Save(st state.ReminderState) {
	s.Load()
	s.state = st

	blob, err := json.Marshal(st)
	if err != nil {
		s.logger.Warn("snapshot marshal failed", zap.Error(err))
		return
	}
	if len(s.extra) > 0 {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(blob, &doc); err == nil {
			for key, v := range s.extra {
				if _, ok := doc[key]; !ok {
					doc[key] = v
				}
			}
			if merged, err := json.Marshal(doc); err == nil {
				blob = merged
			}
		}
	}
	if err := s.backend.Write(blob); err != nil {
		s.logger.Debug("snapshot write failed", zap.Error(err))
	}
}

// Update applies a partial mutation and flushes. Top-level fields are
// shallow-merged; the nested snoozes and settings maps deep-merge.
func (s *Store) Update(p state.Patch) state.ReminderState {
	st := s.Load()
	p.Apply(&st)
	st.PruneCompletions(s.now())
	s.Save(st)
	return st
}

// SetActiveTask replaces the active task (nil clears it) and flushes.
func (s *Store) SetActiveTask(t *state.ActiveTask) *state.ActiveTask {
	st := s.Load()
	if t != nil && !t.Valid() {
		s.logger.Warn("refusing partial active task", zap.String("title", t.Title))
		return st.ActiveTask
	}
	st.ActiveTask = t
	s.Save(st)
	return st.ActiveTask
}

func (s *Store) ClearActiveTask() {
	s.SetActiveTask(nil)
}

func (s *Store) Close() error {
	return s.backend.Close()
}
