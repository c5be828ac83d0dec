package runner

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// pauser is the part of the engine the keyboard toggle drives.
type pauser interface {
	Pause()
	Play()
	IsPaused() bool
}

// stateDisplay shows the pause state next to the progress counters.
type stateDisplay interface {
	SetState(state string)
	Clear()
}

// startStdinToggle reads single keypresses from stdin and toggles p on
// Enter or Space. It returns a function that restores the terminal. When
// stdin is not a terminal nothing is started.
func startStdinToggle(p pauser, display stateDisplay, log *slog.Logger) (restore func()) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		log.Warn("could not enable raw terminal, pause toggle disabled", "error", err)
		return func() {}
	}

	// MakeRaw disables OPOST; output still needs \n -> \r\n.
	fixOutputProcessing(fd)

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}

			switch key := buf[0]; key {
			case 0x03:
				// Ctrl+C: hand the interrupt back to the signal handlers.
				_ = term.Restore(fd, oldState)
				sendInterrupt()
				return
			case '\r', '\n', ' ':
				toggle(p, display, log)
			}
		}
	}()

	return func() { _ = term.Restore(fd, oldState) }
}

// toggle flips the engine between paused and running. Pause blocks until
// every worker has parked.
func toggle(p pauser, display stateDisplay, log *slog.Logger) {
	if p.IsPaused() {
		p.Play()
		display.SetState("")
		display.Clear()
		log.Info("scan resumed")
		return
	}
	p.Pause()
	display.SetState("paused")
	display.Clear()
	log.Info("scan paused, press Enter or Space to resume")
}
