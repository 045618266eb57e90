package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hearth-home/hearth-core/internal/wire"
)

func TestFutureResolvesOnce(t *testing.T) {
	f := newFuture()

	if !f.resolve(wire.RPCResult{OK: true}) {
		t.Fatal("first resolve should win")
	}
	if f.resolve(wire.RPCResult{OK: false}) {
		t.Error("second resolve should lose")
	}
	if f.fail(ErrRPCTimeout) {
		t.Error("fail after resolve should lose")
	}

	result, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !result.OK {
		t.Error("first resolution should stick")
	}
}

func TestFutureFail(t *testing.T) {
	f := newFuture()
	f.fail(ErrRPCTimeout)

	_, err := f.Wait(context.Background())
	if !errors.Is(err, ErrRPCTimeout) {
		t.Errorf("Wait error = %v, want %v", err, ErrRPCTimeout)
	}
}

func TestFutureWaitHonoursContext(t *testing.T) {
	f := newFuture()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestPendingResolve(t *testing.T) {
	p := newPendingRequests()
	f := newFuture()
	p.add("req-1", f, time.Now().Add(time.Minute))

	if !p.resolve("req-1", wire.RPCResult{OK: true}) {
		t.Fatal("resolve should find the entry")
	}
	if p.resolve("req-1", wire.RPCResult{}) {
		t.Error("second resolve should report stale")
	}
	if p.resolve("never-seen", wire.RPCResult{}) {
		t.Error("unknown id should report stale")
	}

	result, err := f.Wait(context.Background())
	if err != nil || !result.OK {
		t.Errorf("Wait = %+v, %v", result, err)
	}
}

func TestPendingExpire(t *testing.T) {
	p := newPendingRequests()
	now := time.Now()

	fresh := newFuture()
	old := newFuture()
	p.add("fresh", fresh, now.Add(time.Minute))
	p.add("old", old, now.Add(-time.Second))

	expired := p.expire(now)
	if len(expired) != 1 || expired[0] != "old" {
		t.Fatalf("expire = %v", expired)
	}
	if p.len() != 1 {
		t.Errorf("len = %d, want 1", p.len())
	}

	if _, err := old.Wait(context.Background()); !errors.Is(err, ErrRPCTimeout) {
		t.Errorf("expired future error = %v, want %v", err, ErrRPCTimeout)
	}

	select {
	case <-fresh.Done():
		t.Error("fresh future should remain pending")
	default:
	}
}

func TestPendingFailAll(t *testing.T) {
	p := newPendingRequests()
	f := newFuture()
	p.add("req-1", f, time.Now().Add(time.Minute))

	p.failAll(ErrStopped)
	if p.len() != 0 {
		t.Errorf("len = %d, want 0", p.len())
	}
	if _, err := f.Wait(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("error = %v, want %v", err, ErrStopped)
	}
}
