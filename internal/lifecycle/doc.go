// Package lifecycle populates and tears down the embed session set.
//
// A Controller fetches a credential for every report descriptor in parallel,
// loads the successes into its session store in descriptor order and hands
// each one to the refresh scheduler. Dispose cancels every pending refresh
// before emptying the store, so nothing writes a credential after teardown.
package lifecycle
