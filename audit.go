package fidokey

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sixafter/nanoid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// AuditEvent is one entry in the diagnostics trail a deployment may
// keep alongside the wire protocol. It is never part of the wire
// contract (spec §6: "Host-facing surface: only the serial byte
// stream") — a bench rig or a simulator consults it after the fact,
// the way the host never does.
type AuditEvent struct {
	// CorrelationID distinguishes concurrently logged operations across
	// multiple simulator instances sharing one trail file.
	CorrelationID string
	// Opcode is the wire opcode that produced this event. Unknown
	// opcodes are dropped by the Dispatcher without an event.
	Opcode int32
	// Status is the StatusCode the handler emitted.
	Status StatusCode
	// At is when the event was recorded.
	At time.Time
	// Detail carries handler-specific context (e.g. which app id hash
	// or how many slots remained), kept as a free-form map so the
	// record format never depends on a generated Go struct this repo
	// doesn't own.
	Detail map[string]any
}

// toStruct encodes e as a structpb.Struct, the one message type the
// protobuf well-known types provide that can already hold an arbitrary
// JSON-like value without a repo-owned .proto schema.
func (e AuditEvent) toStruct() (*structpb.Struct, error) {
	fields := map[string]any{
		"correlation_id": e.CorrelationID,
		"opcode":         float64(e.Opcode),
		"status":         float64(e.Status),
		"at":             e.At.UTC().Format(time.RFC3339Nano),
	}
	if e.Detail != nil {
		fields["detail"] = e.Detail
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("encode audit event: %w", err)
	}
	return s, nil
}

func auditEventFromStruct(s *structpb.Struct) (AuditEvent, error) {
	m := s.AsMap()
	at, _ := m["at"].(string)
	parsed, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return AuditEvent{}, fmt.Errorf("parse audit event timestamp %q: %w", at, err)
	}

	event := AuditEvent{
		CorrelationID: fmt.Sprint(m["correlation_id"]),
		At:            parsed,
	}
	if opcode, ok := m["opcode"].(float64); ok {
		event.Opcode = int32(opcode)
	}
	if status, ok := m["status"].(float64); ok {
		event.Status = StatusCode(status)
	}
	if detail, ok := m["detail"].(map[string]any); ok {
		event.Detail = detail
	}
	return event, nil
}

// AuditLog appends AuditEvents as length-prefixed protobuf records to
// a flat file, and keeps the most recent ones in an in-process LRU
// cache for cheap inspection without re-reading the file (grounded in
// the credential store's "payload length known up front, append only"
// framing, adapted from a fixed-size record to a variable-length one).
type AuditLog struct {
	mu     sync.Mutex
	file   *os.File
	recent *lru.Cache[string, AuditEvent]
}

const auditRecentCacheSize = 256

// OpenAuditLog opens (creating if necessary) an append-only audit
// trail at path.
func OpenAuditLog(path string) (*AuditLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log %s: %w", path, err)
	}
	cache, err := lru.New[string, AuditEvent](auditRecentCacheSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create audit cache: %w", err)
	}
	return &AuditLog{file: f, recent: cache}, nil
}

// Record appends one event, stamping it with a fresh correlation id
// and the current time, then returns the id assigned so the caller can
// correlate it with a later Recent lookup.
func (a *AuditLog) Record(opcode int32, status StatusCode, detail map[string]any) (string, error) {
	id, err := nanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate correlation id: %w", err)
	}

	event := AuditEvent{
		CorrelationID: id,
		Opcode:        opcode,
		Status:        status,
		At:            time.Now(),
		Detail:        detail,
	}

	if err := a.append(event); err != nil {
		return "", err
	}

	a.recent.Add(id, event)
	return id, nil
}

func (a *AuditLog) append(event AuditEvent) error {
	s, err := event.toStruct()
	if err != nil {
		return err
	}
	payload, err := proto.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(payload)))

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.file.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("write audit record length: %w", err)
	}
	if _, err := a.file.Write(payload); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return a.file.Sync()
}

// Recent returns the event recorded under id if it is still in the
// in-process cache (it is not re-read from disk once evicted).
func (a *AuditLog) Recent(id string) (AuditEvent, bool) {
	return a.recent.Get(id)
}

// RecentEvents returns every event still held in the in-process cache,
// in the cache's iteration order. It never touches the backing file;
// cmd/tokenctl's "recent" command, running in another process, replays
// the file with ReadAll instead.
func (a *AuditLog) RecentEvents() []AuditEvent {
	keys := a.recent.Keys()
	events := make([]AuditEvent, 0, len(keys))
	for _, k := range keys {
		if event, ok := a.recent.Peek(k); ok {
			events = append(events, event)
		}
	}
	return events
}

// Close releases the underlying file handle.
func (a *AuditLog) Close() error {
	return a.file.Close()
}

// ReadAll replays every record in an audit trail file, in append
// order. It is independent of AuditLog so a separate diagnostics tool
// can inspect a trail without holding the write lock.
func ReadAll(path string) ([]AuditEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audit log %s: %w", path, err)
	}

	var events []AuditEvent
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("audit log %s: truncated length prefix", path)
		}
		n := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < n {
			return nil, fmt.Errorf("audit log %s: truncated record", path)
		}
		record, rest := data[:n], data[n:]
		data = rest

		var s structpb.Struct
		if err := proto.Unmarshal(record, &s); err != nil {
			return nil, fmt.Errorf("audit log %s: unmarshal record: %w", path, err)
		}
		event, err := auditEventFromStruct(&s)
		if err != nil {
			return nil, fmt.Errorf("audit log %s: %w", path, err)
		}
		events = append(events, event)
	}
	return events, nil
}
