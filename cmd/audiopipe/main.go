// ABOUTME: Entry point for the audiopipe recorder and player
// ABOUTME: Parses CLI flags, wires devices and codecs, and drives the TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/audiopipe/internal/ui"
	"github.com/Resonate-Protocol/audiopipe/internal/version"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/codec"
	"github.com/Resonate-Protocol/audiopipe/pkg/audio/output"
	"github.com/Resonate-Protocol/audiopipe/pkg/player"
	"github.com/Resonate-Protocol/audiopipe/pkg/recorder"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

var (
	mode       = flag.String("mode", "record", "Operation: record or play")
	file       = flag.String("file", "", "Audio file (default for record: recording-<uuid>.opus)")
	duration   = flag.Duration("duration", 0, "Stop recording after this long (0: until stopped)")
	backend    = flag.String("backend", "malgo", "Output backend: malgo or oto")
	rate       = flag.Int("rate", 16000, "Recording sample rate in Hz")
	channels   = flag.Int("channels", 1, "Recording channel count")
	bufferSize = flag.Int("buffer-size", player.DefaultBufferSize, "Playback buffer size in bytes")
	outputRate = flag.Int("output-rate", 0, "Convert playback to this device rate in Hz (0: play at the file rate)")
	logFile    = flag.String("log-file", "audiopipe.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	lockThread = flag.Bool("lock-threads", true, "Pin engine workers to OS threads")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

const stopTimeout = 5 * time.Second

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println(version.String())
		return
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	log.Printf("Starting %s: mode=%s backend=%s", version.String(), *mode, *backend)

	openOutput, err := outputBackend(*backend, *outputRate)
	if err != nil {
		log.Fatalf("%v", err)
	}

	path := *file
	if path == "" {
		if *mode != "record" {
			log.Fatalf("-file is required for -mode %s", *mode)
		}
		path = fmt.Sprintf("recording-%s.opus", uuid.New().String())
	}

	// TUI setup
	var tuiProg *tea.Program
	var control *ui.Control

	if useTUI {
		control = ui.NewControl()
		tuiProg, err = ui.Run(*mode, path, control)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	// Helper to update TUI
	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var commands <-chan ui.Command
	if control != nil {
		commands = control.Commands
	}

	switch *mode {
	case "record":
		format := audio.Format{Codec: "pcm", SampleRate: *rate, Channels: *channels, BitDepth: 16}
		err = runRecord(path, format, *duration, commands, sigChan, updateTUI)
	case "play":
		err = runPlay(path, openOutput, useTUI, commands, sigChan, updateTUI)
	default:
		err = fmt.Errorf("unknown mode %q (want record or play)", *mode)
	}

	if tuiProg != nil {
		tuiProg.Quit()
	}
	if err != nil {
		log.Fatalf("%s failed: %v", *mode, err)
	}
}

// outputBackend selects the playback device implementation. A non-zero rate
// converts the stream on its way to the device.
func outputBackend(name string, rate int) (output.Opener, error) {
	if rate < 0 {
		return nil, fmt.Errorf("invalid output rate %d", rate)
	}
	switch name {
	case "malgo":
		return output.Resampled(output.NewMalgo, rate), nil
	case "oto":
		return output.Resampled(output.NewOto, rate), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want malgo or oto)", name)
	}
}

// runRecord records until the duration elapses, the user stops, or a signal arrives
func runRecord(path string, format audio.Format, limit time.Duration, commands <-chan ui.Command,
	sigChan <-chan os.Signal, updateTUI func(ui.StatusMsg)) error {

	rec, err := recorder.New(recorder.Config{
		Format:      format,
		LockThreads: *lockThread,
		OnError: func(err error) {
			log.Printf("Recorder error: %v", err)
			updateTUI(ui.StatusMsg{Err: err.Error()})
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create recorder: %w", err)
	}

	if err := rec.Start(path); err != nil {
		_ = rec.Stop(context.Background())
		return err
	}
	log.Printf("Recording to %s (%s)", path, format)
	updateTUI(ui.StatusMsg{State: rec.State().String(), Format: &format})

	var deadline <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-ticker.C:
			stats := rec.Stats()
			updateTUI(ui.StatusMsg{
				Elapsed:  rec.Elapsed(),
				Captured: stats.BytesCaptured,
				Frames:   stats.FramesEncoded,
			})
		case <-deadline:
			log.Printf("Recording duration reached")
			break wait
		case cmd := <-commands:
			if cmd == ui.CommandStop || cmd == ui.CommandQuit {
				log.Printf("Stop requested from TUI")
				break wait
			}
		case <-sigChan:
			log.Printf("Shutdown signal received")
			break wait
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := rec.Stop(ctx); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}

	stats := rec.Stats()
	log.Printf("Recorded %s to %s (%d frames, %d buffers)",
		rec.Elapsed(), path, stats.FramesEncoded, stats.BuffersAllocated)
	updateTUI(ui.StatusMsg{State: rec.State().String(), Elapsed: rec.Elapsed()})

	if !codec.Default().Probe(path) {
		log.Printf("Warning: %s does not probe as a playable file", path)
	}
	return nil
}

// runPlay plays path once. With the TUI it stays open for replays until quit.
func runPlay(path string, openOutput output.Opener, interactive bool, commands <-chan ui.Command,
	sigChan <-chan os.Signal, updateTUI func(ui.StatusMsg)) error {

	finished := make(chan struct{}, 1)
	p, err := player.New(player.Config{
		BufferSize:  *bufferSize,
		OpenOutput:  openOutput,
		LockThreads: *lockThread,
		OnFinish: func() {
			select {
			case finished <- struct{}{}:
			default:
			}
		},
		OnError: func(err error) {
			log.Printf("Player error: %v", err)
			updateTUI(ui.StatusMsg{Err: err.Error()})
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Printf("Error closing player: %v", err)
		}
	}()

	play := func() error {
		if err := p.Play(path); err != nil {
			return err
		}
		updateTUI(ui.StatusMsg{State: p.State().String()})
		return nil
	}
	if err := play(); err != nil {
		return err
	}

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := p.Stats()
			pool := p.Pool()
			updateTUI(ui.StatusMsg{
				State:        p.State().String(),
				Decoded:      stats.BytesDecoded,
				Written:      stats.BytesWritten,
				ShortWrites:  stats.ShortWrites,
				PoolFree:     pool.Free,
				PoolInFlight: pool.InFlight,
				PoolTotal:    pool.Total,
			})
		case <-finished:
			log.Printf("Playback finished")
			updateTUI(ui.StatusMsg{State: p.State().String()})
			if !interactive {
				return nil
			}
		case cmd := <-commands:
			switch cmd {
			case ui.CommandStop:
				p.Stop()
				updateTUI(ui.StatusMsg{State: p.State().String()})
			case ui.CommandReplay:
				if p.State() == player.StateIdle {
					if err := play(); err != nil {
						log.Printf("Replay failed: %v", err)
						updateTUI(ui.StatusMsg{Err: err.Error()})
					}
				}
			case ui.CommandQuit:
				log.Printf("Received quit signal from TUI")
				return nil
			}
		case <-sigChan:
			log.Printf("Shutdown signal received")
			return nil
		}
	}
}
