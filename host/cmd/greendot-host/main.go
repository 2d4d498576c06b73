package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"greendot/core"
	"greendot/host/config"
	"greendot/host/mcu"
	"greendot/host/serial"
	"greendot/host/spidev"
	"greendot/probe"
	"greendot/sim"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: greendot-host <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  sim      Read an in-process simulated chip")
	fmt.Fprintln(os.Stderr, "  probe    Read and verify a flashed emulator over SPI")
	fmt.Fprintln(os.Stderr, "  monitor  Connect to the firmware telemetry port")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "sim":
		err = runSim(os.Args[2:])
	case "probe":
		err = runProbe(os.Args[2:])
	case "monitor":
		err = runMonitor(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the optional config file
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func runSim(args []string) error {
	fs := flag.NewFlagSet("sim", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	profileName := fs.String("profile", "", "Device profile (base, extended)")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *profileName != "" {
		cfg.Profile = *profileName
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	profile, _ := core.ProfileByName(cfg.Profile)

	h := sim.Start(profile)
	defer h.Stop()

	chip := &probe.Chip{
		Bus: h.Bus,
		Select: func(asserted bool) {
			if asserted {
				h.Bus.Select()
			} else {
				h.Bus.Deselect()
			}
		},
		Filler: cfg.Probe.Filler,
	}

	fmt.Printf("Simulated chip, profile %s (opcodes %s)\n\n", profile.Name, profile.Opcodes())
	report, err := chip.Identify()
	if err != nil {
		return err
	}
	printReport(report)

	stats := h.Stats()
	fmt.Printf("\nExchanges: %d  Transactions: %d  Unknown: %d  Completed: %d\n",
		stats.Exchanges, stats.Transactions, stats.UnknownOpcodes, stats.Completed)
	return nil
}

func runProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	port := fs.String("port", "", "SPI port (e.g. /dev/spidev0.0)")
	speed := fs.Int64("speed", 0, "SPI clock in Hz")
	profileName := fs.String("profile", "", "Expected profile (base, extended)")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Probe.Port = *port
	}
	if *speed != 0 {
		cfg.Probe.SpeedHz = *speed
	}
	if *profileName != "" {
		cfg.Profile = *profileName
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	profile, _ := core.ProfileByName(cfg.Profile)

	bus, err := spidev.Open(spidev.Config{
		Port:    cfg.Probe.Port,
		SpeedHz: cfg.Probe.SpeedHz,
		Mode:    cfg.Probe.SPIMode(),
	})
	if err != nil {
		return err
	}
	defer bus.Close()

	fmt.Printf("Probing %s at %d Hz\n\n", bus, cfg.Probe.SpeedHz)
	chip := &probe.Chip{Bus: bus, Filler: cfg.Probe.Filler}
	report, err := chip.Identify()
	if err != nil {
		return err
	}
	printReport(report)

	if err := probe.Verify(report, profile); err != nil {
		return err
	}
	fmt.Printf("\nChip matches profile %s\n", profile.Name)
	return nil
}

func printReport(r *probe.Report) {
	fmt.Printf("Status:            0x%02X\n", r.Status)
	fmt.Printf("Manufacturer ID:   % X\n", r.ManufacturerID)
	fmt.Printf("Security register (%d bytes):\n", len(r.SecurityRegister))
	fmt.Print(hex.Dump(r.SecurityRegister))
	if r.Profile != "" {
		fmt.Printf("Detected profile:  %s\n", r.Profile)
	} else {
		fmt.Println("Detected profile:  none")
	}
}

func runMonitor(args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML config file")
	device := fs.String("device", "", "Serial device path")
	baud := fs.Int("baud", 0, "Baud rate (ignored for USB CDC)")
	watch := fs.Bool("watch", false, "Poll status instead of prompting")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *device != "" {
		cfg.Monitor.Device = *device
	}
	if *baud != 0 {
		cfg.Monitor.Baud = *baud
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	fmt.Printf("Connecting to firmware on %s...\n", cfg.Monitor.Device)
	conn, err := mcu.Open(serial.FromMonitor(cfg.Monitor))
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.RetrieveDictionary(); err != nil {
		return fmt.Errorf("retrieve dictionary: %w", err)
	}
	conn.PrintDictionary(os.Stdout)

	if *watch {
		return watchStatus(conn, cfg.Monitor.PollInterval())
	}
	return prompt(conn)
}

// watchStatus prints the counters every interval until interrupted
func watchStatus(conn *mcu.MCU, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := printStatus(conn); err != nil {
			return err
		}
		<-ticker.C
	}
}

func prompt(conn *mcu.MCU) error {
	fmt.Println("\nEnter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		var err error
		switch parts[0] {
		case "quit", "exit", "q":
			return nil
		case "help", "?":
			printHelp()
		case "dict":
			conn.PrintDictionary(os.Stdout)
		case "raw":
			raw := conn.DictionaryRaw()
			fmt.Printf("Raw dictionary (%d bytes):\n%s\n", len(raw), raw)
		case "status":
			err = printStatus(conn)
		case "uptime":
			var ticks uint32
			if ticks, err = conn.Uptime(); err == nil {
				fmt.Printf("Uptime: %d us\n", core.TimerToUS(ticks))
			}
		case "events":
			err = printEvents(conn)
		case "clear":
			err = conn.ClearEvents()
		case "debug":
			err = conn.SetDebug(len(parts) < 2 || parts[1] != "off")
		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", parts[0])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  status         - Responder counters")
	fmt.Println("  events         - Dump the event ring")
	fmt.Println("  clear          - Clear the event ring")
	fmt.Println("  uptime         - Firmware uptime")
	fmt.Println("  debug [on|off] - Toggle firmware debug output")
	fmt.Println("  dict           - Print dictionary summary")
	fmt.Println("  raw            - Print raw dictionary data")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println()
}

func printStatus(conn *mcu.MCU) error {
	s, err := conn.Status()
	if err != nil {
		return err
	}
	fmt.Printf("[%s] profile=%s exchanges=%d transactions=%d unknown=%d reselects=%d completed=%d overruns=%d panics=%d\n",
		time.Now().Format("15:04:05"), s.Profile, s.Exchanges, s.Transactions, s.UnknownOpcodes,
		s.Reselects, s.Completed, s.Overruns, s.Panics)
	return nil
}

func printEvents(conn *mcu.MCU) error {
	events, err := conn.Events()
	if err != nil {
		return err
	}
	fmt.Printf("%d events\n", len(events))
	for _, evt := range events {
		fmt.Println("  " + evt.String())
	}
	return nil
}
