package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-motif/config"
	gmidi "go-motif/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	flags := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	configPath := flags.String("config", "", "config file (default ~/.config/go-motif/config.json)")
	serialPort := flags.String("serial", "", "read a serial MIDI device instead of MIDI ports")
	flags.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "miditest:", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		listPorts(cfg)
	case "monitor":
		err = monitor(cfg, *serialPort)
	case "match":
		err = match(cfg, flags.Args())
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "miditest:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                - List all MIDI ports and which would be used")
	fmt.Println("  monitor [-serial d] - Print incoming note events")
	fmt.Println("  match note...       - Run the configured patterns over a note sequence")
	fmt.Println("")
	fmt.Println("Every command accepts -config path.")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func listPorts(cfg *config.Config) {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		names := make([]string, len(r.ins))
		for i, p := range r.ins {
			names[i] = p.String()
		}
		used := make(map[string]bool)
		for _, name := range gmidi.SelectPorts(names, cfg.MIDI.Preferred, cfg.MIDI.Excluded) {
			used[name] = true
		}
		for i, name := range names {
			mark := " "
			if used[name] {
				mark = "*"
			}
			fmt.Printf(" %s%d: %s\n", mark, i, name)
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

func match(cfg *config.Config, notes []string) error {
	lib, err := cfg.Library()
	if err != nil {
		return err
	}
	return runMatch(os.Stdout, lib, notes)
}

func printEvent(status, data1, data2 uint8) {
	ev, ok := gmidi.Decode(status, data1, data2)
	if !ok {
		fmt.Printf("[%s] %02X %3d %3d\n", time.Now().Format("15:04:05.000"), status, data1, data2)
		return
	}
	fmt.Printf("[%s] ch%-2d %-3s %3d vel %3d\n", time.Now().Format("15:04:05.000"), ev.Channel, ev.Kind, ev.Note, ev.Velocity)
}

func monitor(cfg *config.Config, serialPort string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if serialPort == "" {
		serialPort = cfg.MIDI.SerialPort
	}
	if serialPort != "" {
		s, err := gmidi.OpenSerial(serialPort, cfg.MIDI.SerialBaud, printEvent)
		if err != nil {
			return err
		}
		defer s.Close()
		fmt.Printf("Listening on %s. Ctrl+C to exit.\n", serialPort)
		select {
		case <-ctx.Done():
		case <-s.Done():
		}
		return nil
	}

	dm := gmidi.NewDeviceManager(printEvent, cfg.MIDIOptions())
	if err := dm.Start(false); err != nil {
		return err
	}
	fmt.Println("Listening on all selected inputs. Ctrl+C to exit.")
	go func() {
		for ev := range dm.Events() {
			switch ev.Type {
			case gmidi.DeviceConnected:
				fmt.Printf("  -> connected %s\n", ev.ID)
			case gmidi.DeviceDisconnected:
				fmt.Printf("  -> disconnected %s\n", ev.ID)
			}
		}
	}()
	return dm.Run(ctx)
}
