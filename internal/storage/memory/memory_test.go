package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"payplan/internal/core"
	"payplan/internal/storage"
)

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("seed_accounts.txt", "# id,name\nmain, Main account\n")
	write("seed_instruments.txt", "visa,Visa,card,main,10,month-end,1,true\ndd,Utilities,direct_debit,main,,,0,false\n")

	s, err := NewFromFiles(dir)
	if err != nil {
		t.Fatalf("NewFromFiles() error = %v", err)
	}
	accounts, _ := s.ListAccounts(context.Background())
	if len(accounts) != 1 || accounts[0].Name != "Main account" {
		t.Errorf("ListAccounts() = %v", accounts)
	}
	in, err := s.GetInstrument(context.Background(), "visa")
	if err != nil {
		t.Fatalf("GetInstrument() error = %v", err)
	}
	if !in.Billing.PaymentDay.IsMonthEnd() || in.Billing.PaymentMonthShift != 1 {
		t.Errorf("visa billing = %+v", in.Billing)
	}
}

func TestNewFromFilesRejectsBadSeed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "seed_instruments.txt"), []byte("visa,Visa,card,main,40,1,1,false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFromFiles(dir); !errors.Is(err, core.ErrInvalidDayToken) {
		t.Errorf("NewFromFiles() error = %v, want ErrInvalidDayToken", err)
	}
}

func TestNewFromFilesMissingDirectory(t *testing.T) {
	s, err := NewFromFiles(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("NewFromFiles() error = %v", err)
	}
	instruments, _ := s.ListInstruments(context.Background())
	if len(instruments) != 0 {
		t.Errorf("expected empty store, got %v", instruments)
	}
}

func TestApplyFixFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.UpsertAccount(ctx, core.Account{ID: "a", Name: "A"})
	_ = s.UpsertInstrument(ctx, core.Instrument{ID: "c", Kind: core.KindCard, AccountID: "a",
		Billing: core.BillingConfig{ClosingDay: core.Literal(1), PaymentDay: core.Literal(2), AdjustWeekend: true}})
	_ = s.CreateFixRun(ctx, storage.FixRun{ID: "r", Status: storage.FixRunPending})
	s.FailApply = errors.New("disk full")

	err := s.ApplyFix(ctx, "r", map[string]core.BillingConfig{"c": {ClosingDay: core.Literal(1), PaymentDay: core.Literal(2)}}, nil)
	if err == nil {
		t.Fatalf("ApplyFix() should fail")
	}
	in, _ := s.GetInstrument(ctx, "c")
	if !in.Billing.AdjustWeekend {
		t.Errorf("config should be unchanged after failed apply")
	}
}
