package fidokey

// Dispatcher is the top-level request/response loop (spec §4.7). It
// owns no state of its own beyond its collaborators: every byte that
// reaches the wire originates in a handler, never in the Dispatcher
// itself.
type Dispatcher struct {
	Transport Transport
	Store     Store
	Crypto    CryptoAdapter
	Gate      *ConfirmationGate

	// Audit, if non-nil, receives one event per handled opcode. It is
	// pure diagnostics: nothing it does ever changes a wire byte or a
	// status code (spec §7's "no logging" contract binds the host-
	// visible surface, not an operator-facing trail).
	Audit *AuditLog
}

// NewDispatcher wires the four collaborators a Dispatcher needs. Audit
// is left nil; set it directly for a deployment that wants a trail.
func NewDispatcher(transport Transport, store Store, crypto CryptoAdapter, gate *ConfirmationGate) *Dispatcher {
	return &Dispatcher{Transport: transport, Store: store, Crypto: crypto, Gate: gate}
}

// recordAudit appends one event if an AuditLog is wired. Failures to
// append are swallowed here by design: a diagnostics trail must never
// be able to fail a host-facing operation that otherwise succeeded.
func (d *Dispatcher) recordAudit(opcode byte, status StatusCode, detail map[string]any) {
	if d.Audit == nil {
		return
	}
	_, _ = d.Audit.Record(int32(opcode), status, detail)
}

// Run reads and dispatches opcodes until the Transport returns an
// error (typically io.EOF on a closed link). It never returns a nil
// error; callers distinguish a clean shutdown by checking errors.Is(err,
// io.EOF).
func (d *Dispatcher) Run() error {
	for {
		if err := d.step(); err != nil {
			return err
		}
	}
}

// step handles exactly one Idle->Dispatch(c)->handler->Idle cycle, or
// silently drops one unknown opcode with no response (spec §4.7).
func (d *Dispatcher) step() error {
	opcode, err := d.Transport.ReadByte()
	if err != nil {
		return err
	}

	switch opcode {
	case OpList:
		return d.handleList()
	case OpMakeCredential:
		return d.handleMakeCredential()
	case OpGetAssertion:
		return d.handleGetAssertion()
	case OpReset:
		return d.handleReset()
	default:
		// Unknown opcode: no payload read, no response written.
		return nil
	}
}

// writeStatus writes a single status byte, the entirety of a failure
// response.
func (d *Dispatcher) writeStatus(status StatusCode) error {
	return d.Transport.WriteByte(byte(status))
}

func (d *Dispatcher) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	for i := range buf {
		b, err := d.Transport.ReadByte()
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

func (d *Dispatcher) writeAll(bs ...[]byte) error {
	for _, b := range bs {
		for _, c := range b {
			if err := d.Transport.WriteByte(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// confirm runs the Confirmation Gate and maps its outcome to
// ErrDeclined for callers that want a uniform error return.
func (d *Dispatcher) confirm() error {
	if !d.Gate.Confirm() {
		return ErrDeclined
	}
	return nil
}
