// Command tokenctl is an interactive console for driving a running
// tokend instance over its wire protocol, for bench testing and manual
// exercising of the four opcodes without a real host stack.
package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/arcbound/fidokey"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("tokenctl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	serialDevice := fs.StringP("serial", "s", "", "serial device path (mutually exclusive with --in/--out)")
	baud := fs.Uint32P("baud", "b", 115200, "baud rate, used only with --serial")
	inPath := fs.String("in", "", "path to read tokend's responses from (a FIFO)")
	outPath := fs.String("out", "", "path to write commands to tokend on (a FIFO)")
	auditPath := fs.StringP("audit-log", "a", "", "path to tokend's diagnostics trail, for the 'recent' command")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "tokenctl: %v\n", err)
		return 2
	}

	transport, closeFn, err := dialTransport(*serialDevice, *baud, *inPath, *outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokenctl: %v\n", err)
		return 1
	}
	defer closeFn()

	console := &console{transport: transport, auditPath: *auditPath, out: os.Stdout}
	return console.run()
}

func dialTransport(serialDevice string, baud uint32, inPath, outPath string) (fidokey.Transport, func() error, error) {
	if serialDevice != "" {
		t, err := fidokey.OpenSerialTransport(serialDevice, baud)
		if err != nil {
			return nil, nil, fmt.Errorf("open serial device: %w", err)
		}
		return t, t.Close, nil
	}

	if inPath == "" || outPath == "" {
		return nil, nil, fmt.Errorf("specify --serial, or both --in and --out")
	}

	in, err := os.OpenFile(inPath, os.O_RDONLY, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", inPath, err)
	}
	out, err := os.OpenFile(outPath, os.O_WRONLY, 0)
	if err != nil {
		in.Close()
		return nil, nil, fmt.Errorf("open %s: %w", outPath, err)
	}

	t := fidokey.NewPipeTransport(in, out)
	closeFn := func() error {
		in.Close()
		return out.Close()
	}
	return t, closeFn, nil
}

// console is the REPL driving one Transport.
type console struct {
	transport fidokey.Transport
	auditPath string
	out       io.Writer
	liner     *liner.State
}

var commands = []string{"list", "make", "get", "reset", "recent", "help", "exit", "quit", "q"}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".tokenctl_history")
}

func (c *console) completer(line string) []string {
	var out []string
	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			out = append(out, cmd)
		}
	}
	return out
}

func (c *console) run() int {
	c.liner = liner.NewLiner()
	defer c.liner.Close()
	c.liner.SetCtrlCAborts(true)
	c.liner.SetCompleter(c.completer)

	if f, err := os.Open(historyFile()); err == nil {
		c.liner.ReadHistory(f)
		f.Close()
	}

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintln(c.out, "tokenctl - fidokey console. Type 'help' for commands.")
	}

	for {
		line, err := c.liner.Prompt("tokenctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				break
			}
			fmt.Fprintf(os.Stderr, "tokenctl: %v\n", err)
			return 1
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			c.saveHistory()
			return 0
		case "help", "?":
			c.printHelp()
		case "list":
			c.cmdList()
		case "make":
			c.cmdMake(args)
		case "get":
			c.cmdGet(args)
		case "reset":
			c.cmdReset()
		case "recent":
			c.cmdRecent(args)
		default:
			fmt.Fprintf(c.out, "unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
	c.saveHistory()
	return 0
}

func (c *console) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			c.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (c *console) printHelp() {
	fmt.Fprintln(c.out, "  list                              enumerate stored credentials")
	fmt.Fprintln(c.out, "  make <app_id_hash_hex>            create a credential (20-byte hex)")
	fmt.Fprintln(c.out, "  get <app_id_hash_hex> <digest_hex> request an assertion (20-byte hex each)")
	fmt.Fprintln(c.out, "  reset                             erase every stored credential")
	fmt.Fprintln(c.out, "  recent [n]                        show the last n audit events (needs --audit-log)")
	fmt.Fprintln(c.out, "  help                              show this text")
	fmt.Fprintln(c.out, "  exit | quit | q                   leave the console")
}

func (c *console) writeByte(b byte) bool {
	if err := c.transport.WriteByte(b); err != nil {
		fmt.Fprintf(c.out, "write error: %v\n", err)
		return false
	}
	return true
}

func (c *console) writeBytes(bs []byte) bool {
	for _, b := range bs {
		if !c.writeByte(b) {
			return false
		}
	}
	return true
}

func (c *console) readByte() (byte, bool) {
	b, err := c.transport.ReadByte()
	if err != nil {
		fmt.Fprintf(c.out, "read error: %v\n", err)
		return 0, false
	}
	return b, true
}

func (c *console) readBytes(n int) ([]byte, bool) {
	buf := make([]byte, n)
	for i := range buf {
		b, ok := c.readByte()
		if !ok {
			return nil, false
		}
		buf[i] = b
	}
	return buf, true
}

func (c *console) decodeHex(label, s string, wantLen int) ([]byte, bool) {
	b, err := hex.DecodeString(s)
	if err != nil {
		fmt.Fprintf(c.out, "%s: invalid hex: %v\n", label, err)
		return nil, false
	}
	if len(b) != wantLen {
		fmt.Fprintf(c.out, "%s: want %d bytes, got %d\n", label, wantLen, len(b))
		return nil, false
	}
	return b, true
}

func (c *console) readStatus() (fidokey.StatusCode, bool) {
	b, ok := c.readByte()
	if !ok {
		return 0, false
	}
	return fidokey.StatusCode(b), true
}

func (c *console) cmdList() {
	if !c.writeByte(fidokey.OpList) {
		return
	}
	status, ok := c.readStatus()
	if !ok {
		return
	}
	if status != fidokey.StatusOK {
		fmt.Fprintf(c.out, "status: %d\n", status)
		return
	}
	countByte, ok := c.readByte()
	if !ok {
		return
	}
	fmt.Fprintf(c.out, "status: OK, count: %d\n", countByte)
	for i := 0; i < int(countByte); i++ {
		entry, ok := c.readBytes(36)
		if !ok {
			return
		}
		fmt.Fprintf(c.out, "  [%d] credential_id=%s app_id_hash=%s\n", i, hex.EncodeToString(entry[:16]), hex.EncodeToString(entry[16:]))
	}
}

func (c *console) cmdMake(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "usage: make <app_id_hash_hex>")
		return
	}
	appIDHash, ok := c.decodeHex("app_id_hash", args[0], 20)
	if !ok {
		return
	}
	if !c.writeByte(fidokey.OpMakeCredential) || !c.writeBytes(appIDHash) {
		return
	}
	status, ok := c.readStatus()
	if !ok {
		return
	}
	if status != fidokey.StatusOK {
		fmt.Fprintf(c.out, "status: %d\n", status)
		return
	}
	body, ok := c.readBytes(16 + 40)
	if !ok {
		return
	}
	fmt.Fprintf(c.out, "status: OK\ncredential_id: %s\npublic_key: %s\n", hex.EncodeToString(body[:16]), hex.EncodeToString(body[16:]))
}

func (c *console) cmdGet(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "usage: get <app_id_hash_hex> <digest_hex>")
		return
	}
	appIDHash, ok := c.decodeHex("app_id_hash", args[0], 20)
	if !ok {
		return
	}
	digest, ok := c.decodeHex("digest", args[1], 20)
	if !ok {
		return
	}
	if !c.writeByte(fidokey.OpGetAssertion) || !c.writeBytes(appIDHash) || !c.writeBytes(digest) {
		return
	}
	status, ok := c.readStatus()
	if !ok {
		return
	}
	if status != fidokey.StatusOK {
		fmt.Fprintf(c.out, "status: %d\n", status)
		return
	}
	body, ok := c.readBytes(16 + 40)
	if !ok {
		return
	}
	fmt.Fprintf(c.out, "status: OK\ncredential_id: %s\nsignature: %s\n", hex.EncodeToString(body[:16]), hex.EncodeToString(body[16:]))
}

func (c *console) cmdReset() {
	if !c.writeByte(fidokey.OpReset) {
		return
	}
	status, ok := c.readStatus()
	if !ok {
		return
	}
	fmt.Fprintf(c.out, "status: %d\n", status)
}

func (c *console) cmdRecent(args []string) {
	if c.auditPath == "" {
		fmt.Fprintln(c.out, "no --audit-log path configured")
		return
	}
	n := 10
	if len(args) == 1 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(c.out, "invalid count: %v\n", err)
			return
		}
		n = parsed
	}
	if n < 0 {
		n = 0
	}

	events, err := fidokey.ReadAll(c.auditPath)
	if err != nil {
		fmt.Fprintf(c.out, "read audit log: %v\n", err)
		return
	}
	if n > len(events) {
		n = len(events)
	}
	for _, e := range events[len(events)-n:] {
		fmt.Fprintf(c.out, "  %s opcode=%d status=%d at=%s\n", e.CorrelationID, e.Opcode, e.Status, e.At.Format("15:04:05.000"))
	}
}
