package fidokey

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// runStoreConformanceSuite exercises the Store contract against any
// backend; both flatStore and sqliteStore must pass it identically.
func runStoreConformanceSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("EmptyStoreHasZeroCount", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		count, err := st.Count()
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected count 0, got %d", count)
		}

		entries, err := st.Enumerate()
		if err != nil {
			t.Fatalf("Enumerate: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("expected no entries, got %d", len(entries))
		}
	})

	t.Run("AppendThenFind", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		var aidh AppIDHash
		for i := range aidh {
			aidh[i] = byte(i)
		}
		var cid CredentialID
		for i := range cid {
			cid[i] = byte(i)
		}
		var priv PrivateKey
		for i := range priv {
			priv[i] = byte(0xA0 + i)
		}

		if err := st.Append(aidh, cid, priv); err != nil {
			t.Fatalf("Append: %v", err)
		}

		count, err := st.Count()
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected count 1, got %d", count)
		}

		got, found, err := st.FindByAppID(aidh)
		if err != nil {
			t.Fatalf("FindByAppID: %v", err)
		}
		if !found {
			t.Fatal("expected to find appended credential")
		}
		want := Credential{AppIDHash: aidh, CredentialID: cid, PrivateKey: priv}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("credential mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("FindMissingReturnsNotFound", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		var aidh AppIDHash
		aidh[0] = 0xFF

		_, found, err := st.FindByAppID(aidh)
		if err != nil {
			t.Fatalf("FindByAppID: %v", err)
		}
		if found {
			t.Fatal("expected not found on empty store")
		}
	})

	t.Run("FindReturnsOldestMatchOnDuplicateAppID", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		var aidh AppIDHash
		aidh[0] = 0x42

		var cid1, cid2 CredentialID
		cid1[0] = 1
		cid2[0] = 2
		var priv1, priv2 PrivateKey
		priv1[0] = 1
		priv2[0] = 2

		if err := st.Append(aidh, cid1, priv1); err != nil {
			t.Fatalf("first Append: %v", err)
		}
		if err := st.Append(aidh, cid2, priv2); err != nil {
			t.Fatalf("second Append: %v", err)
		}

		got, found, err := st.FindByAppID(aidh)
		if err != nil {
			t.Fatalf("FindByAppID: %v", err)
		}
		if !found {
			t.Fatal("expected a match")
		}
		if got.CredentialID != cid1 {
			t.Fatalf("expected oldest entry (cid1), got %+v", got.CredentialID)
		}
	})

	t.Run("StorageFullAfterMaxSlots", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		for i := 0; i < MaxSlots; i++ {
			var aidh AppIDHash
			aidh[0] = byte(i)
			var cid CredentialID
			var priv PrivateKey
			if err := st.Append(aidh, cid, priv); err != nil {
				t.Fatalf("append %d: %v", i, err)
			}
		}

		var aidh AppIDHash
		aidh[0] = 0xFF
		var cid CredentialID
		var priv PrivateKey
		err := st.Append(aidh, cid, priv)
		if err == nil {
			t.Fatal("expected ErrStorageFull on 18th append")
		}
		if !errors.Is(err, ErrStorageFull) {
			t.Fatalf("expected ErrStorageFull, got %v", err)
		}

		count, err := st.Count()
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if count != MaxSlots {
			t.Fatalf("expected count to remain %d, got %d", MaxSlots, count)
		}
	})

	t.Run("EraseAllPurgesStore", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		var aidh AppIDHash
		aidh[0] = 9
		var cid CredentialID
		var priv PrivateKey
		if err := st.Append(aidh, cid, priv); err != nil {
			t.Fatalf("Append: %v", err)
		}

		if err := st.EraseAll(); err != nil {
			t.Fatalf("EraseAll: %v", err)
		}

		count, err := st.Count()
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected count 0 after erase, got %d", count)
		}

		_, found, err := st.FindByAppID(aidh)
		if err != nil {
			t.Fatalf("FindByAppID: %v", err)
		}
		if found {
			t.Fatal("expected no match after erase")
		}
	})

	t.Run("EnumerateOmitsPrivateKeys", func(t *testing.T) {
		st := newStore(t)
		defer st.Close()

		var aidh AppIDHash
		aidh[0] = 7
		var cid CredentialID
		cid[0] = 7
		var priv PrivateKey
		priv[0] = 0xEE
		if err := st.Append(aidh, cid, priv); err != nil {
			t.Fatalf("Append: %v", err)
		}

		entries, err := st.Enumerate()
		if err != nil {
			t.Fatalf("Enumerate: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		if entries[0].CredentialID != cid || entries[0].AppIDHash != aidh {
			t.Fatalf("unexpected entry: %+v", entries[0])
		}
	})
}
