// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package qv implements quadratic ticket pricing.

Buying t voting tickets costs t² of donation balance:

	qv.Cost(3)  // 9
	qv.Price(3) // decimal 9

The inverse answers how many tickets a balance can afford:

	qv.MaxTickets(decimal.NewFromInt(100)) // 10

Cost is strictly increasing for positive t, so a larger purchase is always
more expensive than a smaller one.
*/
package qv
