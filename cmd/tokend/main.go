// Command tokend runs the token simulator: it wires a Store, a
// Transport, the ECC crypto adapter and a Confirmation Gate into a
// fidokey.Dispatcher and serves opcodes until the link closes or the
// process is signaled.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	"github.com/arcbound/fidokey"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin *os.File, stdout, stderr *os.File) int {
	fs := flag.NewFlagSet("tokend", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.StringP("config", "c", "", "path to a JSONC config file (defaults applied if omitted)")
	auditPath := fs.StringP("audit-log", "a", "", "path to an append-only diagnostics trail (disabled if empty)")
	deviceID := fs.String("device-id", "", "stable device identity to report at startup (random if empty)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(stderr, "tokend: %v\n", err)
		return 2
	}

	id := *deviceID
	if id == "" {
		id = uuid.NewString()
	}

	cfg, err := fidokey.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "tokend: %v\n", err)
		return 1
	}

	store, err := cfg.OpenStore()
	if err != nil {
		fmt.Fprintf(stderr, "tokend: open store: %v\n", err)
		return 1
	}
	defer store.Close()

	transport, closeTransport, err := openTransport(cfg, stdin, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "tokend: open transport: %v\n", err)
		return 1
	}
	defer closeTransport()

	crypto := fidokey.NewECCAdapter(fidokey.CSPRNGEntropy{})

	gate := fidokey.NewConfirmationGate(newSignalSampler(), &consoleIndicator{out: stderr})
	gate.Timing = cfg.GateTiming.Resolve()

	dispatcher := fidokey.NewDispatcher(transport, store, crypto, gate)

	if *auditPath != "" {
		audit, err := fidokey.OpenAuditLog(*auditPath)
		if err != nil {
			fmt.Fprintf(stderr, "tokend: open audit log: %v\n", err)
			return 1
		}
		defer audit.Close()
		dispatcher.Audit = audit
	}

	count, _ := store.Count()
	window := gate.Timing.PhaseDuration * time.Duration(gate.Timing.NumPhases)
	fmt.Fprintf(stderr, "tokend %s: store=%s region=%s slots=%d/%d confirm-window=%s\n",
		id, cfg.StoreKind, humanize.Bytes(uint64(fidokey.RegionSize)), count, fidokey.MaxSlots, window)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(stderr, "tokend: shutting down")
		closeTransport()
	}()

	if err := dispatcher.Run(); err != nil {
		fmt.Fprintf(stderr, "tokend: link closed: %v\n", err)
		return 0
	}
	return 0
}

// openTransport selects a PipeTransport over stdio, or a real serial
// device when cfg.SerialDevice is set.
func openTransport(cfg fidokey.Config, stdin *os.File, stdout *os.File) (fidokey.Transport, func() error, error) {
	if cfg.SerialDevice == "" {
		t := fidokey.NewPipeTransport(stdin, stdout)
		return t, func() error { return nil }, nil
	}

	t, err := fidokey.OpenSerialTransport(cfg.SerialDevice, cfg.BaudRate)
	if err != nil {
		return nil, nil, err
	}
	return t, t.Close, nil
}

// signalSampler simulates a physical button: an operator delivers
// SIGUSR1 to this process to simulate a press, which reads as Pressed
// for a short window and Released otherwise.
type signalSampler struct {
	pressed atomic.Bool
}

const simulatedPressDuration = 200 * time.Millisecond

func newSignalSampler() *signalSampler {
	s := &signalSampler{}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	go func() {
		for range sigCh {
			s.pressed.Store(true)
			time.AfterFunc(simulatedPressDuration, func() { s.pressed.Store(false) })
		}
	}()
	return s
}

func (s *signalSampler) ReadLevel() fidokey.Level {
	if s.pressed.Load() {
		return fidokey.Pressed
	}
	return fidokey.Released
}

// consoleIndicator stands in for the confirmation LED: it prints a
// line to stderr on every toggle, since the simulator has no hardware
// to blink.
type consoleIndicator struct {
	out *os.File
	on  bool
}

func (c *consoleIndicator) Toggle() {
	c.on = !c.on
	state := "off"
	if c.on {
		state = "on"
	}
	fmt.Fprintf(c.out, "[confirmation LED %s]\n", state)
}
