// Package mock provides test doubles for the session lifecycle packages.
//
//   - MockClock: a controllable clock.Clock whose AfterFunc timers fire only
//     when the test advances time, in deadline order.
//   - Fetcher: a scripted credential fetcher with per-report result queues
//     and gates for holding a fetch in flight.
//   - Reporter: records every reported (identifier, error) pair.
//
// Typical use:
//
//	clk := mock.NewMockClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
//	fetcher := mock.NewFetcher()
//	fetcher.Succeed("sales", embed.Credential{Token: "t1", ExpiresAt: clk.Now().Add(time.Hour)})
//	clk.Advance(59*time.Minute + 30*time.Second) // fires the refresh
package mock
