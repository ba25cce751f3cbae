package observability

import (
	"sync"
	"time"
)

type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseRecording Phase = "RECORDING"
	PhaseFinalized Phase = "DONE"
)

type RecorderStatus struct {
	mu           sync.RWMutex
	CurrentPhase Phase
	RunID        string
	CurrentStep  int
	Artifacts    int
	LastWrite    time.Time
}

var globalStatus = &RecorderStatus{
	CurrentPhase: PhaseIdle,
	LastWrite:    time.Now(),
}

// SetStatus updates the global recorder status.
func SetStatus(phase Phase, runID string, step int) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.CurrentPhase = phase
	globalStatus.RunID = runID
	globalStatus.CurrentStep = step
}

// ArtifactWritten bumps the artifact counter and the last-write time.
func ArtifactWritten() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.Artifacts++
	globalStatus.LastWrite = time.Now()
}

// GetStatus retrieves a copy of the global recorder status.
func GetStatus() (Phase, string, int, int, time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.CurrentPhase, globalStatus.RunID, globalStatus.CurrentStep,
		globalStatus.Artifacts, globalStatus.LastWrite
}
