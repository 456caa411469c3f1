package internaldefs

import (
	flowAuth "github.com/MrEthical07/flowAuth"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   flowAuth.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   flowAuth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: flowAuth.MetricLoginSuccess, Name: "flowauth_login_success_total", Help: "Logins that issued a session."},
	{ID: flowAuth.MetricLoginFailure, Name: "flowauth_login_failure_total", Help: "Logins that ended in an error."},
	{ID: flowAuth.MetricRegisterSuccess, Name: "flowauth_register_success_total", Help: "Created accounts."},
	{ID: flowAuth.MetricRegisterInvalid, Name: "flowauth_register_invalid_total", Help: "Registrations rejected by input validation."},
	{ID: flowAuth.MetricRegisterDuplicate, Name: "flowauth_register_duplicate_total", Help: "Registrations rejected because the email exists."},
	{ID: flowAuth.MetricSessionCreated, Name: "flowauth_session_created_total", Help: "Persisted sessions."},
	{ID: flowAuth.MetricStoreError, Name: "flowauth_store_error_total", Help: "Credential store failures."},
	{ID: flowAuth.MetricPasswordUpgraded, Name: "flowauth_password_upgraded_total", Help: "Legacy password digests replaced after login."},
}

var HistogramDefs = []HistogramDef{
	{ID: flowAuth.MetricLoginLatency, Name: "flowauth_login_duration_seconds", Help: "Login pipeline duration including pacing."},
	{ID: flowAuth.MetricRegisterLatency, Name: "flowauth_register_duration_seconds", Help: "Registration pipeline duration including pacing."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's eight
// latency buckets.
var HistogramBounds = []string{
	"0.01",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"5",
	"+Inf",
}

// HistogramBoundValues mirrors HistogramBounds without the +Inf bucket.
var HistogramBoundValues = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 5}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
