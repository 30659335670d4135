// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package qv

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// MaxSafeTickets is the largest ticket count whose cost fits in an int64.
const MaxSafeTickets = 3037000499

// Cost returns the price of buying tickets voting tickets: tickets².
// Callers must keep tickets within 1..MaxSafeTickets.
func Cost(tickets int64) int64 {
	return tickets * tickets
}

// Price is the cost expressed as a donation amount. It is exact for any
// int64.
func Price(tickets int64) decimal.Decimal {
	n := decimal.NewFromInt(tickets)
	return n.Mul(n)
}

// MaxTickets returns the largest ticket count whose cost fits in budget,
// i.e. floor(sqrt(budget)), saturating at math.MaxInt64. Non-positive
// budgets buy nothing.
func MaxTickets(budget decimal.Decimal) int64 {
	if !budget.IsPositive() {
		return 0
	}

	root := new(big.Int).Sqrt(budget.Floor().BigInt())
	if !root.IsInt64() {
		return math.MaxInt64
	}
	return root.Int64()
}
