package recovery

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err   error
		code  WireCode
		coded bool
	}{
		{ErrObsoleteChallenge, CodeObsoleteCode, true},
		{ErrWrongCode, CodeWrongCode, true},
		{ErrTooManyAttempts, CodeTooManyAttempts, true},
		{ErrInvalidEmail, CodeValidationFailed, true},
		{ErrInvalidCode, CodeValidationFailed, true},
		{ErrPasswordPolicy, CodeValidationFailed, true},
		{fmt.Errorf("wrapped: %w", ErrWrongCode), CodeWrongCode, true},
		{ErrThrottled, 0, false},
		{ErrTokenInvalid, 0, false},
		{ErrTokenMissing, 0, false},
		{ErrUnavailable, 0, false},
		{errors.New("unrelated"), 0, false},
	}

	for _, tc := range cases {
		code, ok := CodeFor(tc.err)
		if ok != tc.coded || code != tc.code {
			t.Fatalf("CodeFor(%v) = (%d, %t), want (%d, %t)", tc.err, code, ok, tc.code, tc.coded)
		}
	}
}

func TestThrottledErrorIs(t *testing.T) {
	err := &ThrottledError{RetryAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	if !errors.Is(err, ErrThrottled) {
		t.Fatal("ThrottledError must match ErrThrottled")
	}
	if errors.Is(err, ErrWrongCode) {
		t.Fatal("ThrottledError must not match unrelated sentinels")
	}

	var throttled *ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatal("errors.As must recover the concrete type")
	}
	if !throttled.RetryAt.Equal(err.RetryAt) {
		t.Fatal("RetryAt lost through errors.As")
	}
}
