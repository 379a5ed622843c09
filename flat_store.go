package fidokey

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/natefinch/atomic"
)

// flatStore implements Store as a pair of POSIX files, simulating the
// original firmware's flat EEPROM layout byte-for-byte.
//
// File layout:
//   - slots.bin: RegionSize bytes, slot i at offset i*SlotSize.
//   - count.bin: 1 byte, the durable slot count header.
//
// The slot region is written with an explicit flock + fsync per write,
// mirroring the original "payload, then tag, then header" ordering
// from spec §4.4: Append fsyncs the payload+tag write before it ever
// touches count.bin. count.bin itself is replaced with
// github.com/natefinch/atomic so that the header update is atomic with
// respect to a crash — there is no window in which count.bin holds a
// torn value, which is what spec §4.4 means by "the header update is
// last and atomic relative to future handlers" for Reset, and what
// keeps a crashed Append's header either fully advanced or not at all.
type flatStore struct {
	dir        string
	slotsPath  string
	headerPath string
	slotsFile  *os.File
	mu         sync.Mutex
}

const (
	slotsFileName  = "slots.bin"
	headerFileName = "count.bin"
)

// OpenFlatStore creates or opens a flat-file credential store rooted
// at dir.
func OpenFlatStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	slotsPath := filepath.Join(dir, slotsFileName)
	slotsFile, err := os.OpenFile(slotsPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("open slots file: %w", err)
	}

	info, err := slotsFile.Stat()
	if err != nil {
		_ = slotsFile.Close()
		return nil, fmt.Errorf("stat slots file: %w", err)
	}
	if info.Size() < RegionSize {
		if err := slotsFile.Truncate(RegionSize); err != nil {
			_ = slotsFile.Close()
			return nil, fmt.Errorf("grow slots file: %w", err)
		}
	}

	headerPath := filepath.Join(dir, headerFileName)
	if _, err := os.Stat(headerPath); os.IsNotExist(err) {
		if err := atomic.WriteFile(headerPath, bytes.NewReader([]byte{0})); err != nil {
			_ = slotsFile.Close()
			return nil, fmt.Errorf("initialize header: %w", err)
		}
	}

	return &flatStore{dir: dir, slotsPath: slotsPath, headerPath: headerPath, slotsFile: slotsFile}, nil
}

func (s *flatStore) readCountLocked() (int, error) {
	b, err := os.ReadFile(s.headerPath)
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if len(b) != 1 {
		return 0, fmt.Errorf("corrupt header: expected 1 byte, got %d", len(b))
	}
	count := int(b[0])
	if count > MaxSlots {
		return 0, fmt.Errorf("corrupt header: count %d exceeds MaxSlots %d", count, MaxSlots)
	}
	return count, nil
}

func (s *flatStore) writeCountLocked(count int) error {
	return atomic.WriteFile(s.headerPath, bytes.NewReader([]byte{byte(count)}))
}

// Append implements Store.
func (s *flatStore) Append(appIDHash AppIDHash, credentialID CredentialID, privateKey PrivateKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.readCountLocked()
	if err != nil {
		return err
	}
	if count == MaxSlots {
		return ErrStorageFull
	}

	if err := syscall.Flock(int(s.slotsFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("lock slots file: %w", err)
	}
	defer syscall.Flock(int(s.slotsFile.Fd()), syscall.LOCK_UN)

	offset := int64(count) * SlotSize
	payload := encodeRecord(appIDHash, credentialID, privateKey, slotTagFree)
	// Payload first (tag byte still free): a power loss here leaves the
	// slot looking free on next boot, per spec §4.4.
	if _, err := s.slotsFile.WriteAt(payload[:SlotSize-1], offset); err != nil {
		return fmt.Errorf("write slot payload: %w", err)
	}
	if err := s.slotsFile.Sync(); err != nil {
		return fmt.Errorf("sync slot payload: %w", err)
	}
	// Tag second: a power loss between here and the header write
	// orphans the slot (invisible, since count is unchanged).
	if _, err := s.slotsFile.WriteAt([]byte{slotTagOccupied}, offset+SlotSize-1); err != nil {
		return fmt.Errorf("write slot tag: %w", err)
	}
	if err := s.slotsFile.Sync(); err != nil {
		return fmt.Errorf("sync slot tag: %w", err)
	}

	// Header last.
	return s.writeCountLocked(count + 1)
}

// FindByAppID implements Store.
func (s *flatStore) FindByAppID(appIDHash AppIDHash) (Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.readCountLocked()
	if err != nil {
		return Credential{}, false, err
	}

	buf := make([]byte, SlotSize)
	for i := 0; i < count; i++ {
		if _, err := s.slotsFile.ReadAt(buf, int64(i)*SlotSize); err != nil {
			return Credential{}, false, fmt.Errorf("read slot %d: %w", i, err)
		}
		cred, _ := decodeRecord(buf)
		if cred.AppIDHash == appIDHash {
			return cred, true, nil
		}
	}
	return Credential{}, false, nil
}

// EraseAll implements Store.
func (s *flatStore) EraseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.readCountLocked()
	if err != nil {
		return err
	}

	if err := syscall.Flock(int(s.slotsFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("lock slots file: %w", err)
	}
	defer syscall.Flock(int(s.slotsFile.Fd()), syscall.LOCK_UN)

	for i := 0; i < count; i++ {
		offset := int64(i)*SlotSize + SlotSize - 1
		if _, err := s.slotsFile.WriteAt([]byte{slotTagFree}, offset); err != nil {
			return fmt.Errorf("clear slot %d tag: %w", i, err)
		}
	}
	if err := s.slotsFile.Sync(); err != nil {
		return fmt.Errorf("sync slot tags: %w", err)
	}

	return s.writeCountLocked(0)
}

// Enumerate implements Store.
func (s *flatStore) Enumerate() ([]EnumeratedCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.readCountLocked()
	if err != nil {
		return nil, err
	}

	out := make([]EnumeratedCredential, 0, count)
	buf := make([]byte, SlotSize)
	for i := 0; i < count; i++ {
		if _, err := s.slotsFile.ReadAt(buf, int64(i)*SlotSize); err != nil {
			return nil, fmt.Errorf("read slot %d: %w", i, err)
		}
		cred, _ := decodeRecord(buf)
		out = append(out, EnumeratedCredential{CredentialID: cred.CredentialID, AppIDHash: cred.AppIDHash})
	}
	return out, nil
}

// Count implements Store.
func (s *flatStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCountLocked()
}

// Close implements Store.
func (s *flatStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotsFile.Close()
}
