// Package consumer provides ready-made consumers of streambuffer readers.
//
//   - Periodic: calls a handler with its reader at a fixed interval
//   - Pump: delivers every item of a reader to a sink, in key order
//   - RateMeter / CalculateRateStats: consumption rate and jitter
package consumer
