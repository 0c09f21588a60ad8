package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	errgo "gopkg.in/errgo.v1"

	"go-motif/action"
	"go-motif/audio"
	"go-motif/config"
	"go-motif/debug"
	"go-motif/engine"
	"go-motif/midi"
	"go-motif/synth"
	"go-motif/theme"
	"go-motif/tui"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/go-motif/config.json)")
	headless := flag.Bool("headless", false, "run without the terminal UI, logging to stderr")
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	initFlag := flag.Bool("init", false, "write the current configuration to the config file and exit")
	flag.Parse()

	if *initFlag {
		if err := writeConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "go-motif: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *headless, *debugFlag); err != nil {
		fmt.Fprintf(os.Stderr, "go-motif: %v\n", err)
		switch errgo.Cause(err) {
		case midi.ErrNoPort:
			os.Exit(2)
		case audio.ErrNoDevice:
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

// writeConfig saves the loaded configuration, or the defaults when there is
// none yet, so it can be edited.
func writeConfig(path string) error {
	cfg, err := loadConfig(path)
	if err != nil && errgo.Cause(err) != os.ErrNotExist {
		return errgo.Mask(err, errgo.Any)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if path == "" {
		path, err = config.ConfigPath()
		if err != nil {
			return errgo.Mask(err)
		}
		err = cfg.Save()
	} else {
		err = cfg.SaveFile(path)
	}
	if err != nil {
		return errgo.Notef(err, "cannot write config")
	}
	fmt.Println("wrote", path)
	return nil
}

func run(configPath string, headless, debugLog bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	if err := cfg.Validate(); err != nil {
		return errgo.Mask(err, errgo.Any)
	}

	// The TUI owns the terminal, so it only ever logs to a file.
	switch {
	case headless:
		debug.EnableWriter(os.Stderr)
		debug.SetLevel(log.InfoLevel)
		if debugLog {
			debug.SetLevel(log.DebugLevel)
		}
	case debugLog || cfg.LogPath != "":
		if err := debug.Enable(cfg.LogPath); err != nil {
			return errgo.Notef(err, "cannot open log file")
		}
		defer debug.Disable()
	}
	logger := debug.Logger("main")

	lib, err := cfg.Library()
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	logger.Info("patterns compiled", "patterns", len(lib.Patterns()), "nodes", lib.Len())

	var syn engine.Synthesizer
	if cfg.Audio.SoundFont != "" {
		sf, err := synth.LoadSoundFont(cfg.Audio.SoundFont, cfg.Audio.SampleRate)
		if err != nil {
			return errgo.Mask(err, errgo.Any)
		}
		syn = sf
	} else {
		syn = synth.NewTone(cfg.Audio.SampleRate)
	}

	sinks := action.Sinks{action.LogSink{}}
	var execSink *action.ExecSink
	if len(cfg.Actions) > 0 {
		execSink = action.NewExecSink(cfg.Commands())
		sinks = append(sinks, execSink)
	}
	dispatcher := action.NewDispatcher(sinks, action.DefaultQueueSize)

	eng := engine.New(cfg.EngineConfig(), lib, syn, dispatcher)
	life := eng.Lifecycle()
	defer eng.Close()

	var out *audio.Output
	if cfg.Engine.EnableAudioOutput {
		out, err = audio.Open(cfg.AudioConfig(), eng)
		if err != nil {
			return errgo.Mask(err, errgo.Any)
		}
	}

	// Release every note when an input disappears so nothing hangs.
	opts := cfg.MIDIOptions()
	opts.OnDisconnect = func(id string) {
		eng.StopAll()
	}
	deviceMgr := midi.NewDeviceManager(eng.HandleMIDI, opts)

	var serialIn *midi.SerialController
	if cfg.MIDI.SerialPort != "" {
		serialIn, err = midi.OpenSerial(cfg.MIDI.SerialPort, cfg.MIDI.SerialBaud, eng.HandleMIDI)
		if err != nil && cfg.MIDI.Require {
			closeOutput(out)
			return errgo.Mask(err, errgo.Any)
		}
		if err != nil {
			logger.Warn("serial MIDI unavailable", "err", err)
		}
	}
	if err := deviceMgr.Start(cfg.MIDI.Require && serialIn == nil); err != nil {
		closeOutput(out)
		return errgo.Mask(err, errgo.Any)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	workCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	g, gctx := errgroup.WithContext(workCtx)
	g.Go(func() error {
		return deviceMgr.Run(gctx)
	})
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	g.Go(func() error {
		for {
			select {
			case err := <-eng.RenderErrors():
				debug.Logger("audio").Error("render period replaced by silence", "err", err)
			case <-gctx.Done():
				return nil
			}
		}
	})
	if out != nil {
		g.Go(func() error {
			if err := audio.Watch(gctx, out, time.Second); err != nil {
				debug.Logger("audio").Error("audio output stopped", "err", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		select {
		case <-sigCtx.Done():
		case <-life.Stopping():
		}
		eng.StopAll()
		if life.RequestStop() {
			logger.Info("stop requested")
		}
		life.Wait(gctx, cfg.Grace())
		return nil
	})

	if headless {
		logger.Info("running", "inputs", deviceMgr.Controllers(), "serial", cfg.MIDI.SerialPort)
		<-life.Done()
	} else {
		palette, err := theme.LoadOrDefault(cfg.UI.Palette)
		if err != nil {
			logger.Warn("palette unavailable, using built-in", "err", err)
			palette = theme.Plasma()
		}
		m := tui.NewModel(eng, deviceMgr, theme.New(palette))
		m.Dropped = dispatcher.Dropped
		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			logger.Error("terminal UI failed", "err", err)
			life.RequestStop()
		}
		<-life.Done()
	}

	// Ports are closed by the device manager as it exits.
	stopWorkers()
	err = g.Wait()
	if serialIn != nil {
		serialIn.Close()
	}
	closeOutput(out)
	if execSink != nil {
		waitCtx, cancel := context.WithTimeout(context.Background(), cfg.Grace())
		if err := execSink.Wait(waitCtx); err != nil {
			logger.Warn("action commands did not exit in time", "err", err)
		}
		cancel()
	}
	logger.Info("stopped",
		"notes", eng.Snapshot().Notes,
		"actions", dispatcher.Fired(),
		"dropped actions", dispatcher.Dropped(),
	)
	return err
}

func closeOutput(out *audio.Output) {
	if out == nil {
		return
	}
	if err := out.Err(); err != nil {
		debug.Logger("audio").Warn("audio player error", "err", err)
	}
	if err := out.Close(); err != nil {
		debug.Logger("audio").Warn("closing audio output", "err", err)
	}
}
