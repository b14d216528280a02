package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pixelforge/pixelforge-api/internal/domain/payment"
	"github.com/pixelforge/pixelforge-api/internal/pkg/chainrpc"
)

type fakeSource struct {
	name string
	logs []chainrpc.TransferLog
	err  error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) RecentTransferLogs(ctx context.Context, blockDepth uint64) ([]chainrpc.TransferLog, error) {
	return f.logs, f.err
}

func newScanner(sources ...payment.ChainSource) *payment.Scanner {
	return payment.NewScanner(sources, 300, 5*time.Second, 0.01)
}

func TestScanMatchesWithinTolerance(t *testing.T) {
	src := &fakeSource{name: "polygon", logs: []chainrpc.TransferLog{
		{TxHash: "0xAAA", From: "0xSender", Amount: 9.95, BlockNumber: 100},
	}}

	m, err := newScanner(src).Scan(context.Background(), 10.0)
	if err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if m.Chain != "polygon" || m.TxHash != "0xaaa" {
		t.Fatalf("unexpected match: %+v", m)
	}
}

func TestScanRejectsOutsideTolerance(t *testing.T) {
	src := &fakeSource{name: "polygon", logs: []chainrpc.TransferLog{
		{TxHash: "0xBBB", Amount: 9.0, BlockNumber: 100},
	}}

	_, err := newScanner(src).Scan(context.Background(), 10.0)
	if !errors.Is(err, payment.ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch for 10%% deviation, got %v", err)
	}
}

func TestScanSoftFailure(t *testing.T) {
	failing := &fakeSource{name: "bsc", err: errors.New("rpc timeout")}
	working := &fakeSource{name: "base", logs: []chainrpc.TransferLog{
		{TxHash: "0xCCC", Amount: 10.0, BlockNumber: 42},
	}}

	m, err := newScanner(failing, working).Scan(context.Background(), 10.0)
	if err != nil {
		t.Fatalf("one failing chain must not fail the scan: %v", err)
	}
	if m.Chain != "base" {
		t.Fatalf("expected match from the healthy chain, got %s", m.Chain)
	}
}

func TestScanAllChainsFailed(t *testing.T) {
	a := &fakeSource{name: "bsc", err: errors.New("rpc timeout")}
	b := &fakeSource{name: "base", err: errors.New("connection refused")}

	_, err := newScanner(a, b).Scan(context.Background(), 10.0)
	if !errors.Is(err, payment.ErrAllChainsFailed) {
		t.Fatalf("expected ErrAllChainsFailed, got %v", err)
	}
}

func TestScanNoSources(t *testing.T) {
	_, err := newScanner().Scan(context.Background(), 10.0)
	if !errors.Is(err, payment.ErrAllChainsFailed) {
		t.Fatalf("expected ErrAllChainsFailed with no sources, got %v", err)
	}
}

func TestScanInvalidAmount(t *testing.T) {
	src := &fakeSource{name: "polygon"}
	_, err := newScanner(src).Scan(context.Background(), 0)
	if !errors.Is(err, payment.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
