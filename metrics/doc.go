// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics exposes ledger activity as Prometheus counters. Pass a
// *Metrics to ledger.WithRecorder and mount Handler at /metrics.
package metrics
