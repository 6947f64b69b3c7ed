// Package internaldefs holds the shared metric name and help-text tables
// used by the exporter packages. It is not intended for direct use.
package internaldefs

import (
	recovery "github.com/velorent/recovery"
)

// CounterDef maps one engine counter to its exported name.
type CounterDef struct {
	ID   recovery.MetricID
	Name string
	Help string
}

// HistogramDef maps one engine histogram to its exported name.
type HistogramDef struct {
	ID   recovery.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: recovery.MetricChallengeRequested, Name: "recovery_challenge_requested_total", Help: "Accepted challenge requests, real and fake."},
	{ID: recovery.MetricChallengeFake, Name: "recovery_challenge_fake_total", Help: "Challenges issued for unknown or excluded accounts."},
	{ID: recovery.MetricRequestThrottled, Name: "recovery_request_throttled_total", Help: "Challenge requests rejected by the origin cooldown."},
	{ID: recovery.MetricVerifySuccess, Name: "recovery_verify_success_total", Help: "Correct code submissions."},
	{ID: recovery.MetricVerifyWrongCode, Name: "recovery_verify_wrong_code_total", Help: "Code submissions that burned an attempt."},
	{ID: recovery.MetricVerifyObsolete, Name: "recovery_verify_obsolete_total", Help: "Submissions against absent or expired challenges."},
	{ID: recovery.MetricVerifyLockout, Name: "recovery_verify_lockout_total", Help: "Submissions rejected for an exhausted attempt budget."},
	{ID: recovery.MetricFinalizeSuccess, Name: "recovery_finalize_success_total", Help: "Completed password resets."},
	{ID: recovery.MetricFinalizeRejected, Name: "recovery_finalize_rejected_total", Help: "Rejected finalize calls."},
	{ID: recovery.MetricTokenReplayDetected, Name: "recovery_token_replay_detected_total", Help: "Reuses of an already-spent reset token."},
	{ID: recovery.MetricNotifyFailure, Name: "recovery_notify_failure_total", Help: "Failed recovery-code deliveries."},
}

var HistogramDefs = []HistogramDef{
	{ID: recovery.MetricVerifyLatency, Name: "recovery_verify_latency_seconds", Help: "VerifyChallenge latency histogram."},
}

var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the canonical
// eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus and OTel expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
