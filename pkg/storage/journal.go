// Package storage persists the exchange's committed operations as a
// pebble-backed journal. Records are appended only after an operation has
// fully succeeded; replaying them through the deterministic engine
// rebuilds the vault and order book exactly on restart.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// Operation names as stored in the journal.
const (
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
	OpPlace    = "place"
	OpCancel   = "cancel"
)

// Record is one committed operation. Fields beyond Op/Account are set
// per operation: Asset+Amount for deposit/withdraw, Side+Price+Qty for
// place, OrderID for cancel.
type Record struct {
	Seq     uint64         `json:"seq"`
	Op      string         `json:"op"`
	Account common.Address `json:"account"`
	Asset   int8           `json:"asset,omitempty"`
	Amount  uint64         `json:"amount,omitempty"`
	Side    int8           `json:"side,omitempty"`
	Price   uint64         `json:"price,omitempty"`
	Qty     uint64         `json:"qty,omitempty"`
	OrderID uint64         `json:"order_id,omitempty"`
}

// Journal is the durability hook of the exchange. Append must not fail
// silently: losing a committed operation breaks replay.
type Journal interface {
	Append(r Record)
	Replay(fn func(Record) error) error
	Close() error
}

type NopJournal struct{}

func NewNopJournal() *NopJournal                      { return &NopJournal{} }
func (j *NopJournal) Append(Record)                   {}
func (j *NopJournal) Replay(func(Record) error) error { return nil }
func (j *NopJournal) Close() error                    { return nil }

// PebbleJournal appends records under big-endian sequence keys so a
// forward iteration replays them in commit order.
type PebbleJournal struct {
	db      *pebble.DB
	nextSeq uint64
}

// keys: j:<8-byte-seq>
func recordKey(seq uint64) []byte {
	k := make([]byte, 2+8)
	copy(k, "j:")
	binary.BigEndian.PutUint64(k[2:], seq)
	return k
}

func NewPebbleJournal(path string) (*PebbleJournal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal at %s: %w", path, err)
	}

	j := &PebbleJournal{db: db, nextSeq: 1}

	// Resume the sequence from the last stored record.
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: recordKey(0),
		UpperBound: recordKey(^uint64(0)),
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	if iter.Last() && iter.Valid() {
		j.nextSeq = binary.BigEndian.Uint64(iter.Key()[2:]) + 1
	}
	if err := iter.Close(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *PebbleJournal) Close() error { return j.db.Close() }

// Append writes the record synchronously. A write failure panics: the
// journal is the source of truth on restart and must not drift from the
// in-memory state.
func (j *PebbleJournal) Append(r Record) {
	r.Seq = j.nextSeq
	val, err := json.Marshal(r)
	if err != nil {
		panic(fmt.Errorf("encode journal record: %w", err))
	}
	if err := j.db.Set(recordKey(r.Seq), val, pebble.Sync); err != nil {
		panic(fmt.Errorf("append journal record %d: %w", r.Seq, err))
	}
	j.nextSeq++
}

// Replay invokes fn for every record in commit order.
func (j *PebbleJournal) Replay(fn func(Record) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: recordKey(0),
		UpperBound: recordKey(^uint64(0)),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var r Record
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			return fmt.Errorf("decode journal record: %w", err)
		}
		if err := fn(r); err != nil {
			return fmt.Errorf("replay record %d (%s): %w", r.Seq, r.Op, err)
		}
	}
	return nil
}

var _ Journal = (*NopJournal)(nil)
var _ Journal = (*PebbleJournal)(nil)
