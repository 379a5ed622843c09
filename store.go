package fidokey

// Credential store layout constants (spec §3/§6).
const (
	// SlotSize is the size in bytes of one credential record:
	// app_id_hash(20) + credential_id(16) + private_key(21) + slot_tag(1).
	SlotSize = 20 + 16 + 21 + 1

	// MaxSlots is the number of slots the 1000-byte reserved region holds.
	MaxSlots = 1000 / SlotSize // 17

	// RegionSize is the size in bytes of the reserved slot region.
	RegionSize = MaxSlots * SlotSize

	// slotTagOccupied marks a slot as holding a live record.
	slotTagOccupied = 0xFF
	// slotTagFree marks a slot as free (the zero value, in practice 0x00).
	slotTagFree = 0x00
)

// Credential is one fully decoded slot: the fields a handler needs,
// with the slot_tag left out since no reader is allowed to consult it
// (spec §4.4 design notes — the tag exists for a future compaction
// scheme, not for the current read path).
type Credential struct {
	AppIDHash    AppIDHash
	CredentialID CredentialID
	PrivateKey   PrivateKey
}

// Store is the persistent credential store contract (spec §4.4). All
// operations act on the slot region and the durable count header as a
// unit; single-threaded callers (the Dispatcher) need no locking above
// this interface, but implementations must be safe for the process-
// external durability guarantees spec §5 describes (flock/fsync,
// atomic header commit).
type Store interface {
	// Append allocates the next free slot for (appIDHash, credentialID,
	// privateKey). Returns ErrStorageFull, with no side effect, when
	// Count() == MaxSlots. Write order is significant: payload, then
	// slot_tag, then the count header — see spec §4.4.
	Append(appIDHash AppIDHash, credentialID CredentialID, privateKey PrivateKey) error

	// FindByAppID linearly scans slots 0..Count()-1 and returns the
	// first slot whose app_id_hash matches, ignoring slot_tag entirely.
	FindByAppID(appIDHash AppIDHash) (Credential, bool, error)

	// EraseAll marks every allocated slot's tag free and resets the
	// count header to zero. After this call the store is empty to
	// every subsequent operation.
	EraseAll() error

	// Enumerate returns, in slot order, the credential_id and
	// app_id_hash of every allocated slot. Private keys are never
	// returned by this call.
	Enumerate() ([]EnumeratedCredential, error)

	// Count returns the number of allocated slots.
	Count() (int, error)

	// Close releases any OS resources (file handles, DB connections)
	// held by the store.
	Close() error
}

// EnumeratedCredential is the pair List (opcode 0) returns per slot.
type EnumeratedCredential struct {
	CredentialID CredentialID
	AppIDHash    AppIDHash
}

func encodeRecord(appIDHash AppIDHash, credentialID CredentialID, privateKey PrivateKey, tag byte) []byte {
	buf := make([]byte, SlotSize)
	off := 0
	off += copy(buf[off:], appIDHash[:])
	off += copy(buf[off:], credentialID[:])
	off += copy(buf[off:], privateKey[:])
	buf[off] = tag
	return buf
}

func decodeRecord(buf []byte) (Credential, byte) {
	var c Credential
	off := 0
	off += copy(c.AppIDHash[:], buf[off:off+20])
	off += copy(c.CredentialID[:], buf[off:off+16])
	off += copy(c.PrivateKey[:], buf[off:off+21])
	return c, buf[off]
}
