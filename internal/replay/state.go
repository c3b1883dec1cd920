package replay

import (
	"encoding/json"
	"os"

	"go.uber.org/zap"
)

// engineState is the on-disk JSON structure for the persisted cursor.
type engineState struct {
	Cursor int64 `json:"cursor"`
}

// checkpoint persists the cursor so a later run can resume. No-op when no
// state file is configured.
func (e *Engine) checkpoint(cursor int64) {
	if e.stateFile == "" {
		return
	}

	data, err := json.MarshalIndent(engineState{Cursor: cursor}, "", "  ")
	if err != nil {
		e.logger.Error("failed to marshal replay state", zap.Error(err))
		return
	}

	// Write to a temp file first, then rename for atomicity.
	tmp := e.stateFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		e.logger.Error("failed to write replay state", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, e.stateFile); err != nil {
		e.logger.Error("failed to replace replay state", zap.Error(err))
	}
}

// loadCheckpoint restores a previously persisted cursor, if any.
func (e *Engine) loadCheckpoint() (int64, bool) {
	data, err := os.ReadFile(e.stateFile)
	if err != nil {
		if !os.IsNotExist(err) {
			e.logger.Warn("failed to read replay state", zap.Error(err))
		}
		return 0, false
	}

	var state engineState
	if err := json.Unmarshal(data, &state); err != nil {
		e.logger.Warn("failed to parse replay state, starting fresh", zap.Error(err))
		return 0, false
	}
	if state.Cursor < 0 {
		return 0, false
	}
	return state.Cursor, true
}
