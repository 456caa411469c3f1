// Package flow records the ordered stage trace of one authentication
// pipeline run.
//
// A [Recorder] is created with the run's declared stages and owned by that
// run alone. Steps are appended with contiguous indices starting at 1, are
// never rewritten, and the trace always ends with a terminal step at the last
// declared index, padding skipped stages as [StatusInactive].
//
// # What this package must NOT do
//
//   - Hold state shared between runs.
//   - Record raw secrets; callers redact request data before passing it in.
package flow
