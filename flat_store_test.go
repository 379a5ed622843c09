package fidokey

import (
	"os"
	"testing"
)

func newFlatStoreForTest(t *testing.T) Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "fidokey-flatstore-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	st, err := OpenFlatStore(dir)
	if err != nil {
		t.Fatalf("OpenFlatStore: %v", err)
	}
	return st
}

func TestFlatStore_Conformance(t *testing.T) {
	runStoreConformanceSuite(t, newFlatStoreForTest)
}

func TestFlatStore_ReopenPreservesState(t *testing.T) {
	dir, err := os.MkdirTemp("", "fidokey-flatstore-reopen-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	st, err := OpenFlatStore(dir)
	if err != nil {
		t.Fatalf("OpenFlatStore: %v", err)
	}

	var aidh AppIDHash
	aidh[0] = 0x11
	var cid CredentialID
	var priv PrivateKey
	if err := st.Append(aidh, cid, priv); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenFlatStore(dir)
	if err != nil {
		t.Fatalf("reopen OpenFlatStore: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1 after reopen, got %d", count)
	}

	_, found, err := reopened.FindByAppID(aidh)
	if err != nil {
		t.Fatalf("FindByAppID: %v", err)
	}
	if !found {
		t.Fatal("expected credential to survive reopen")
	}
}
