package observability

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

var spinFrames = []string{"◜", "◝", "◞", "◟"}
var spinIdx = 0

// termMu synchronizes ALL terminal output so that the cursor
// save/restore in PrintLiveStatus can never be interrupted by a log write.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// ------------------------------------------------------------
// TermWriter – a mutex-guarded io.Writer for log output.
// ------------------------------------------------------------

type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput().
// It serialises writes with PrintLiveStatus via termMu.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

// ------------------------------------------------------------
// Banner
// ------------------------------------------------------------

func PrintBanner() {
	fmt.Print("\033[2J\033[H")

	banner := `
   _____ _   _____    ____  __________  ___    ______
  / ___// | / /   |  / __ \/_  __/ __ \/   |  /  _/ /
  \__ \/  |/ / /| | / /_/ / / / / /_/ / /| |  / // /
 ___/ / /|  / ___ |/ ____/ / / / _, _/ ___ |_/ // /___
/____/_/ |_/_/  |_/_/     /_/ /_/ |_/_/  |_/___/_____/

      >> EVERY STEP. EVERY PLAN. ON DISK. <<
`

	width := termWidth()
	lines := strings.Split(banner, "\n")

	for _, l := range lines {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

func InitializeTerminal() {
	// Header/Logo area: 1-9
	// Status line: 10
	// Gap: 11
	// Scrolling Logs: 12+
	fmt.Print("\033[12;r")
	fmt.Print("\033[12;1H")
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

// ------------------------------------------------------------
// Live Status
// ------------------------------------------------------------

func PrintLiveStatus() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime).Round(time.Second)
	memMB := float64(m.Alloc) / 1024 / 1024

	phase, runID, step, artifacts, lastWrite := GetStatus()

	phaseColor := colorReset
	switch phase {
	case PhaseRecording:
		phaseColor = colorNeonCyan
	case PhaseFinalized:
		phaseColor = colorNeonMag
	}

	spin := " "
	if phase == PhaseRecording {
		spin = spinFrames[spinIdx]
		spinIdx = (spinIdx + 1) % len(spinFrames)
	}

	displayRun := runID
	if displayRun == "" {
		displayRun = "waiting..."
	}
	if len(displayRun) > 12 {
		displayRun = displayRun[:12]
	}

	// Memory Bar (Percent Based)
	totalMB := float64(m.Sys) / 1024 / 1024
	memPercent := memMB / totalMB

	barWidth := 20
	filled := clamp(int(memPercent*float64(barWidth)), 0, barWidth)

	bar := strings.Repeat("█", filled) +
		strings.Repeat("▒", barWidth-filled)

	barColor := colorNeonCyan
	if memPercent > 0.7 {
		barColor = colorNeonMag
	}

	// Build the status string BEFORE locking, to minimise lock hold time.
	statusStr := fmt.Sprintf(
		"\033[s\033[10;1H\033[K%s[%s] [%s%-9s%s] run %s step %02d | %d artifacts %s%s%s [%v] [%s%s %.1fMB%s]\033[u",
		colorReset,
		lastWrite.Format("15:04:05"),
		phaseColor, phase, colorReset,
		displayRun, step,
		artifacts,
		colorPurple, spin, colorReset,
		uptime,
		barColor, bar, memMB, colorReset,
	)

	// Lock, write the ENTIRE escape sequence atomically, unlock.
	termMu.Lock()
	fmt.Print(statusStr)
	termMu.Unlock()
}
