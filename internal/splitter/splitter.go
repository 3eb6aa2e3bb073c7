// Package splitter partitions subscription sets into per-socket batches.
package splitter

import (
	"strings"
)

// Subscription is one channel×symbol pair, e.g. kline.1 × BTCUSDT.
// Symbol is empty for channels without a symbol (private topics).
type Subscription struct {
	Channel string
	Symbol  string
}

// Topic returns the wire argument, e.g. "kline.1.BTCUSDT".
func (s Subscription) Topic() string {
	if s.Symbol == "" {
		return s.Channel
	}
	return s.Channel + "." + s.Symbol
}

func (s Subscription) String() string {
	return s.Topic()
}

// Batch is the subset of subscriptions assigned to one socket.
type Batch struct {
	Index         int
	Subscriptions []Subscription
}

// Topics returns the wire arguments of the batch.
func (b Batch) Topics() []string {
	return Topics(b.Subscriptions)
}

// Len returns the number of subscriptions in the batch.
func (b Batch) Len() int {
	return len(b.Subscriptions)
}

// Expand builds the channel×symbol cross product, symbol-major. Symbols are
// uppercased; duplicates of either input are dropped keeping first occurrence.
// With no symbols, each channel becomes a symbol-less subscription.
func Expand(channels, symbols []string) []Subscription {
	chans := dedup(channels, strings.TrimSpace)
	syms := dedup(symbols, func(s string) string {
		return strings.ToUpper(strings.TrimSpace(s))
	})

	if len(syms) == 0 {
		out := make([]Subscription, 0, len(chans))
		for _, ch := range chans {
			out = append(out, Subscription{Channel: ch})
		}
		return out
	}

	out := make([]Subscription, 0, len(chans)*len(syms))
	for _, sym := range syms {
		for _, ch := range chans {
			out = append(out, Subscription{Channel: ch, Symbol: sym})
		}
	}
	return out
}

func dedup(in []string, norm func(string) string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = norm(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Split partitions subs into ceil(len(subs)/limit) batches of at most limit
// entries. Subscriptions of the same symbol are kept contiguous (symbols in
// first-seen order) so a symbol spans at most two adjacent batches when it has
// no more than limit channels. Identical input always yields identical output.
// A limit < 1 places everything in a single batch.
func Split(subs []Subscription, limit int) []Batch {
	if len(subs) == 0 {
		return nil
	}

	ordered := groupBySymbol(subs)
	if limit < 1 || len(ordered) <= limit {
		return []Batch{{Index: 0, Subscriptions: ordered}}
	}

	n := (len(ordered) + limit - 1) / limit
	batches := make([]Batch, 0, n)
	for i := 0; i < n; i++ {
		start := i * limit
		end := start + limit
		if end > len(ordered) {
			end = len(ordered)
		}
		batches = append(batches, Batch{
			Index:         i,
			Subscriptions: ordered[start:end:end],
		})
	}
	return batches
}

// groupBySymbol reorders subs so each symbol's entries are adjacent,
// preserving first-seen order of symbols and channel order within a symbol.
func groupBySymbol(subs []Subscription) []Subscription {
	order := make([]string, 0)
	groups := make(map[string][]Subscription)
	for _, s := range subs {
		if _, ok := groups[s.Symbol]; !ok {
			order = append(order, s.Symbol)
		}
		groups[s.Symbol] = append(groups[s.Symbol], s)
	}

	out := make([]Subscription, 0, len(subs))
	for _, sym := range order {
		out = append(out, groups[sym]...)
	}
	return out
}

// Topics maps subscriptions to wire arguments.
func Topics(subs []Subscription) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.Topic()
	}
	return out
}

// ChunkArgs splits wire arguments into request-sized groups of at most max.
func ChunkArgs(args []string, max int) [][]string {
	if len(args) == 0 {
		return nil
	}
	if max < 1 || len(args) <= max {
		return [][]string{args}
	}

	out := make([][]string, 0, (len(args)+max-1)/max)
	for start := 0; start < len(args); start += max {
		end := start + max
		if end > len(args) {
			end = len(args)
		}
		out = append(out, args[start:end:end])
	}
	return out
}
