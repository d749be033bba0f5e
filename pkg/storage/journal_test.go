package storage

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var alice = common.HexToAddress("0xa11ce00000000000000000000000000000000001")

func TestAppendReplay(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	j, err := NewPebbleJournal(dir)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}

	j.Append(Record{Op: OpDeposit, Account: alice, Asset: 0, Amount: 100})
	j.Append(Record{Op: OpPlace, Account: alice, Side: 1, Price: 10, Qty: 5})
	j.Append(Record{Op: OpCancel, Account: alice, OrderID: 1})

	var got []Record
	if err := j.Replay(func(r Record) error {
		got = append(got, r)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("replayed %d records, want 3", len(got))
	}
	want := []string{OpDeposit, OpPlace, OpCancel}
	for i, op := range want {
		if got[i].Op != op {
			t.Errorf("record %d op = %s, want %s", i, got[i].Op, op)
		}
		if got[i].Seq != uint64(i+1) {
			t.Errorf("record %d seq = %d, want %d", i, got[i].Seq, i+1)
		}
	}
	if got[1].Price != 10 || got[1].Qty != 5 {
		t.Errorf("place record = %+v, want price 10 qty 5", got[1])
	}

	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSequenceResumesAfterReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")

	j, err := NewPebbleJournal(dir)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	j.Append(Record{Op: OpDeposit, Account: alice, Amount: 1})
	j.Append(Record{Op: OpDeposit, Account: alice, Amount: 2})
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j2, err := NewPebbleJournal(dir)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer j2.Close()
	j2.Append(Record{Op: OpDeposit, Account: alice, Amount: 3})

	var seqs []uint64
	if err := j2.Replay(func(r Record) error {
		seqs = append(seqs, r.Seq)
		return nil
	}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(seqs) != 3 || seqs[2] != 3 {
		t.Errorf("seqs = %v, want [1 2 3]", seqs)
	}
}
