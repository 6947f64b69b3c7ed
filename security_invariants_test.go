package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// The recovery flow must not reveal whether an address has an account: every
// observable outcome of verify is identical for real and fake challenges.
func TestEnumerationParity(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig()
	f := newTestEngine(t, rdb, cfg, aliceAccount())

	if _, err := f.engine.RequestChallenge(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("request for known address failed: %v", err)
	}
	if _, err := f.engine.RequestChallenge(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("request for unknown address failed: %v", err)
	}

	wrong := wrongCodeFor(f.notifier.lastCode())
	for i := 0; i < cfg.Challenge.MaxAttempts; i++ {
		_, realErr := f.engine.VerifyChallenge(context.Background(), "alice@example.com", wrong)
		_, fakeErr := f.engine.VerifyChallenge(context.Background(), "nobody@example.com", wrong)
		if !errors.Is(realErr, fakeErr) || !errors.Is(realErr, ErrWrongCode) {
			t.Fatalf("attempt %d: errors diverge: real=%v fake=%v", i+1, realErr, fakeErr)
		}
	}

	_, realErr := f.engine.VerifyChallenge(context.Background(), "alice@example.com", wrong)
	_, fakeErr := f.engine.VerifyChallenge(context.Background(), "nobody@example.com", wrong)
	if !errors.Is(realErr, ErrTooManyAttempts) || !errors.Is(fakeErr, ErrTooManyAttempts) {
		t.Fatalf("lockout diverges: real=%v fake=%v", realErr, fakeErr)
	}
}

// A correct code consumed concurrently must produce exactly one token.
func TestConcurrentVerifySingleWinner(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	f := newTestEngine(t, rdb, testConfig(), aliceAccount())

	if _, err := f.engine.RequestChallenge(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("RequestChallenge failed: %v", err)
	}
	code := f.notifier.lastCode()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		losers    int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.VerifyChallenge(context.Background(), "alice@example.com", code)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrObsoleteChallenge):
				losers++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly 1 successful verification, got %d", successes)
	}
	if losers != workers-1 {
		t.Fatalf("expected %d obsolete results, got %d", workers-1, losers)
	}
}

// A reset token used concurrently must change the password exactly once.
func TestConcurrentFinalizeSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	f := newTestEngine(t, rdb, testConfig(), aliceAccount())
	tok := runToToken(t, f)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.engine.FinalizeReset(context.Background(), tok, "correct horse battery")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrTokenInvalid):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("expected exactly 1 successful finalize, got %d", successes)
	}
	if f.credentials.calls != 1 {
		t.Fatalf("expected exactly 1 credential write, got %d", f.credentials.calls)
	}
}
