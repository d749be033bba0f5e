package exchange

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/minidex/pkg/core"
	"github.com/uhyunpark/minidex/pkg/storage"
	"github.com/uhyunpark/minidex/pkg/token"
)

var (
	alice   = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
	bob     = common.HexToAddress("0xb0b0000000000000000000000000000000000002")
	carol   = common.HexToAddress("0xca40100000000000000000000000000000000003")
	custody = common.HexToAddress("0x00000000000000000000000000000000deadbeef")
)

const funded = uint64(1_000_000)

// setup funds alice and bob on both tokens with full custody allowance.
// Carol gets tokens but no allowance.
func setup(t *testing.T) (*Exchange, *token.ERC20, *token.ERC20) {
	t.Helper()
	baseERC := token.NewERC20()
	quoteERC := token.NewERC20()
	for _, a := range []common.Address{alice, bob} {
		baseERC.Mint(a, funded)
		quoteERC.Mint(a, funded)
		baseERC.Approve(a, custody, funded)
		quoteERC.Approve(a, custody, funded)
	}
	baseERC.Mint(carol, funded)

	ex, err := New(Config{
		Base:    baseERC.Bound(custody),
		Quote:   quoteERC.Bound(custody),
		Custody: custody,
	})
	if err != nil {
		t.Fatalf("new exchange: %v", err)
	}
	return ex, baseERC, quoteERC
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	ex, baseERC, _ := setup(t)

	if err := ex.Deposit(alice, core.Base, 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := ex.BalanceOf(alice, core.Base); got != 1000 {
		t.Errorf("balance = %d, want 1000", got)
	}
	if got := baseERC.BalanceOf(custody); got != 1000 {
		t.Errorf("custody tokens = %d, want 1000", got)
	}

	if err := ex.Withdraw(alice, core.Base, 1000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := ex.BalanceOf(alice, core.Base); got != 0 {
		t.Errorf("balance after withdraw = %d, want 0", got)
	}
	if got := baseERC.BalanceOf(alice); got != funded {
		t.Errorf("alice tokens = %d, want %d", got, funded)
	}

	// Second withdraw fails and changes nothing.
	err := ex.Withdraw(alice, core.Base, 1000)
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Errorf("second withdraw: err = %v, want ErrInsufficientBalance", err)
	}
	if got := baseERC.BalanceOf(alice); got != funded {
		t.Errorf("alice tokens after failed withdraw = %d, want %d", got, funded)
	}
}

func TestDepositValidation(t *testing.T) {
	ex, _, _ := setup(t)

	if err := ex.Deposit(alice, core.Base, 0); !errors.Is(err, core.ErrInvalidQuantity) {
		t.Errorf("zero deposit: err = %v, want ErrInvalidQuantity", err)
	}
	// Carol never approved the custody address.
	err := ex.Deposit(carol, core.Base, 100)
	if !errors.Is(err, core.ErrInsufficientAllowance) {
		t.Errorf("unapproved deposit: err = %v, want ErrInsufficientAllowance", err)
	}
	if got := ex.BalanceOf(carol, core.Base); got != 0 {
		t.Errorf("carol balance = %d, want 0", got)
	}
}

func TestWithdrawRollbackOnTransferFailure(t *testing.T) {
	ex, baseERC, _ := setup(t)
	if err := ex.Deposit(alice, core.Base, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	baseERC.FailNextTransfer()
	if err := ex.Withdraw(alice, core.Base, 50); err == nil {
		t.Fatal("withdraw with failing transfer did not error")
	}

	// The debit must be rolled back; no partial state observable.
	if got := ex.BalanceOf(alice, core.Base); got != 100 {
		t.Errorf("balance after rollback = %d, want 100", got)
	}
	if got := baseERC.BalanceOf(custody); got != 100 {
		t.Errorf("custody tokens = %d, want 100", got)
	}
}

func TestZeroInputRejection(t *testing.T) {
	ex, _, _ := setup(t)
	if err := ex.Deposit(alice, core.Quote, 1000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, _, err := ex.PlaceLimitOrder(alice, core.Buy, 0, 10); !errors.Is(err, core.ErrInvalidPrice) {
		t.Errorf("zero price: err = %v, want ErrInvalidPrice", err)
	}
	if _, _, err := ex.PlaceLimitOrder(alice, core.Buy, 10, 0); !errors.Is(err, core.ErrInvalidQuantity) {
		t.Errorf("zero qty: err = %v, want ErrInvalidQuantity", err)
	}

	// No order created, no balance locked.
	if got := ex.LockedOf(alice, core.Quote); got != 0 {
		t.Errorf("locked = %d, want 0", got)
	}
	bids, asks := ex.Depth()
	if len(bids) != 0 || len(asks) != 0 {
		t.Errorf("book not empty: %d bids, %d asks", len(bids), len(asks))
	}
}

func TestPlaceWithoutFundsFails(t *testing.T) {
	ex, _, _ := setup(t)

	_, _, err := ex.PlaceLimitOrder(alice, core.Buy, 10, 10)
	if !errors.Is(err, core.ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}
	bids, _ := ex.Depth()
	if len(bids) != 0 {
		t.Error("failed placement mutated the book")
	}
}

func TestNotionalOverflowRejected(t *testing.T) {
	ex, _, _ := setup(t)
	if err := ex.Deposit(alice, core.Quote, funded); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	_, _, err := ex.PlaceLimitOrder(alice, core.Buy, math.MaxUint64/2, 3)
	if !errors.Is(err, core.ErrInvalidQuantity) {
		t.Errorf("overflowing notional: err = %v, want ErrInvalidQuantity", err)
	}
}

func TestCancellationRefund(t *testing.T) {
	ex, _, _ := setup(t)
	if err := ex.Deposit(alice, core.Quote, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	id, fills, err := ex.PlaceLimitOrder(alice, core.Buy, 5, 20)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if len(fills) != 0 {
		t.Fatalf("unexpected fills: %d", len(fills))
	}
	if got := ex.LockedOf(alice, core.Quote); got != 100 {
		t.Fatalf("locked = %d, want 100", got)
	}

	if err := ex.CancelOrder(alice, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := ex.LockedOf(alice, core.Quote); got != 0 {
		t.Errorf("locked after cancel = %d, want 0", got)
	}
	if got := ex.BalanceOf(alice, core.Quote); got != 100 {
		t.Errorf("available after cancel = %d, want 100", got)
	}

	// Cancelling again, or by a non-owner, is invalid.
	if err := ex.CancelOrder(alice, id); !errors.Is(err, core.ErrInvalidOrder) {
		t.Errorf("double cancel: err = %v, want ErrInvalidOrder", err)
	}
}

func TestCancelByNonOwner(t *testing.T) {
	ex, _, _ := setup(t)
	if err := ex.Deposit(alice, core.Quote, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	id, _, err := ex.PlaceLimitOrder(alice, core.Buy, 5, 20)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if err := ex.CancelOrder(bob, id); !errors.Is(err, core.ErrInvalidOrder) {
		t.Errorf("cancel by non-owner: err = %v, want ErrInvalidOrder", err)
	}
	if _, ok := ex.Order(id); !ok {
		t.Error("order removed by non-owner cancel")
	}
}

func TestMatchThroughFacade(t *testing.T) {
	ex, _, _ := setup(t)
	if err := ex.Deposit(alice, core.Quote, 1000); err != nil {
		t.Fatalf("deposit quote: %v", err)
	}
	if err := ex.Deposit(bob, core.Base, 100); err != nil {
		t.Fatalf("deposit base: %v", err)
	}

	buyID, _, err := ex.PlaceLimitOrder(alice, core.Buy, 10, 100)
	if err != nil {
		t.Fatalf("place buy: %v", err)
	}
	_, fills, err := ex.PlaceLimitOrder(bob, core.Sell, 10, 100)
	if err != nil {
		t.Fatalf("place sell: %v", err)
	}

	if len(fills) != 1 || fills[0].MakerID != buyID || fills[0].Qty != 100 {
		t.Fatalf("fills = %+v, want one fill of 100 against order %d", fills, buyID)
	}
	if got := ex.BalanceOf(alice, core.Base); got != 100 {
		t.Errorf("buyer base = %d, want 100", got)
	}
	if got := ex.BalanceOf(bob, core.Quote); got != 1000 {
		t.Errorf("seller quote = %d, want 1000", got)
	}
	if got := ex.LastPrice(); got != 10 {
		t.Errorf("last price = %d, want 10", got)
	}
}

// Solvency: custodial liability per asset always equals the tokens
// actually held at the custody address.
func TestSolvencyAcrossOperations(t *testing.T) {
	ex, baseERC, quoteERC := setup(t)

	check := func(step string) {
		t.Helper()
		if liab, held := ex.vault.TotalLiability(core.Base), baseERC.BalanceOf(custody); liab != held {
			t.Fatalf("%s: base liability %d != custody holdings %d", step, liab, held)
		}
		if liab, held := ex.vault.TotalLiability(core.Quote), quoteERC.BalanceOf(custody); liab != held {
			t.Fatalf("%s: quote liability %d != custody holdings %d", step, liab, held)
		}
	}

	ex.Deposit(alice, core.Quote, 5000)
	check("deposit quote")
	ex.Deposit(bob, core.Base, 500)
	check("deposit base")

	buyID, _, _ := ex.PlaceLimitOrder(alice, core.Buy, 12, 100)
	check("resting buy")
	ex.PlaceLimitOrder(bob, core.Sell, 10, 40) // partial fill at 12, refund to alice
	check("partial fill")
	ex.PlaceLimitOrder(bob, core.Sell, 12, 100) // fills rest, then rests remainder
	check("cross and rest")

	ex.CancelOrder(alice, buyID)
	check("cancel")

	ex.Withdraw(alice, core.Quote, ex.BalanceOf(alice, core.Quote))
	check("withdraw all available")
}

func TestJournalReplayRebuildsState(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")

	baseERC := token.NewERC20()
	quoteERC := token.NewERC20()
	for _, a := range []common.Address{alice, bob} {
		baseERC.Mint(a, funded)
		quoteERC.Mint(a, funded)
		baseERC.Approve(a, custody, funded)
		quoteERC.Approve(a, custody, funded)
	}

	j, err := storage.NewPebbleJournal(dir)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	ex, err := New(Config{
		Base: baseERC.Bound(custody), Quote: quoteERC.Bound(custody),
		Custody: custody, Journal: j,
	})
	if err != nil {
		t.Fatalf("new exchange: %v", err)
	}

	ex.Deposit(alice, core.Quote, 1000)
	ex.Deposit(bob, core.Base, 100)
	buyID, _, _ := ex.PlaceLimitOrder(alice, core.Buy, 10, 50)
	ex.PlaceLimitOrder(bob, core.Sell, 10, 20) // partial fill, 30 rests
	cancelID, _, _ := ex.PlaceLimitOrder(bob, core.Sell, 15, 10)
	ex.CancelOrder(bob, cancelID)
	if err := j.Close(); err != nil {
		t.Fatalf("close journal: %v", err)
	}

	// Restart: a fresh exchange over the same journal.
	j2, err := storage.NewPebbleJournal(dir)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer j2.Close()
	ex2, err := New(Config{
		Base: baseERC.Bound(custody), Quote: quoteERC.Bound(custody),
		Custody: custody, Journal: j2,
	})
	if err != nil {
		t.Fatalf("replayed exchange: %v", err)
	}

	for _, a := range []common.Address{alice, bob} {
		for _, asset := range []core.Asset{core.Base, core.Quote} {
			if got, want := ex2.BalanceOf(a, asset), ex.BalanceOf(a, asset); got != want {
				t.Errorf("replayed balance %s/%s = %d, want %d", a.Hex(), asset, got, want)
			}
			if got, want := ex2.LockedOf(a, asset), ex.LockedOf(a, asset); got != want {
				t.Errorf("replayed locked %s/%s = %d, want %d", a.Hex(), asset, got, want)
			}
		}
	}

	o, ok := ex2.Order(buyID)
	if !ok {
		t.Fatalf("replayed book lost resting order %d", buyID)
	}
	if o.Remaining != 30 {
		t.Errorf("replayed remaining = %d, want 30", o.Remaining)
	}
	if _, ok := ex2.Order(cancelID); ok {
		t.Error("replayed book resurrected a cancelled order")
	}
}
