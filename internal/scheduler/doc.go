// Package scheduler keeps embed credentials fresh.
//
// A Scheduler holds an explicit set of pending refreshes keyed by report
// identifier, with at most one entry per report. Scheduling and cancelling
// are plain map operations guarded by a mutex; timers come from an injected
// clock.Clock so tests can drive time.
//
// # Refresh cycle
//
// Schedule(id, expiresAt) arms a single-shot timer for
// expiresAt - SafetyBuffer. When it fires the scheduler:
//
//  1. looks up the report's descriptor in the session store (absent: done),
//  2. fetches a new credential with exactly one attempt,
//  3. on success writes it with UpdateCredential and schedules again,
//  4. on failure reports (id, err) and leaves the old credential in place.
//
// Failed refreshes are not retried. A refresh whose fire instant has
// already passed fires immediately instead of being skipped.
//
// # Cancellation
//
// CancelAll stops every timer and bumps an internal epoch. A fire that was
// already fetching when CancelAll ran drops its result, so a torn-down
// session set never receives a late credential.
package scheduler
