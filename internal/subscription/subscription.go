package subscription

import (
	"fmt"
	"sort"
	"strings"
)

// Delimiter separates channel and symbol inside a subscription token. It is a
// bookkeeping format only and never reaches the wire.
const Delimiter = "$"

// Pair is a (channel, symbol) subscription.
type Pair struct {
	Channel string
	Symbol  string
}

func (p Pair) String() string {
	return p.Channel + Delimiter + p.Symbol
}

// Pairs builds one pair per symbol for the given channel.
func Pairs(channel string, symbols []string) []Pair {
	pairs := make([]Pair, 0, len(symbols))
	for _, s := range symbols {
		pairs = append(pairs, Pair{Channel: channel, Symbol: s})
	}
	return pairs
}

// Encode converts a pair into its token form.
func Encode(p Pair) (string, error) {
	if p.Channel == "" || p.Symbol == "" {
		return "", fmt.Errorf("subscription %q: channel and symbol are required", p.String())
	}
	if strings.Contains(p.Channel, Delimiter) || strings.Contains(p.Symbol, Delimiter) {
		return "", fmt.Errorf("subscription %q: %q is reserved", p.String(), Delimiter)
	}
	return p.String(), nil
}

// Decode parses a token produced by Encode.
func Decode(token string) (Pair, error) {
	parts := strings.Split(token, Delimiter)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid subscription token %q", token)
	}
	return Pair{Channel: parts[0], Symbol: parts[1]}, nil
}

// Validate checks every pair can be encoded.
func Validate(pairs []Pair) error {
	for _, p := range pairs {
		if _, err := Encode(p); err != nil {
			return err
		}
	}
	return nil
}

// Set is the live subscription set of one connection. It is not safe for
// concurrent use; the session engine owns it from a single goroutine.
type Set struct {
	tokens map[string]struct{}
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{tokens: make(map[string]struct{})}
}

// Add inserts pairs and returns those that were not already present, in
// input order. Invalid pairs are skipped.
func (s *Set) Add(pairs ...Pair) []Pair {
	added := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		token, err := Encode(p)
		if err != nil {
			continue
		}
		if _, ok := s.tokens[token]; ok {
			continue
		}
		s.tokens[token] = struct{}{}
		added = append(added, p)
	}
	return added
}

// Remove deletes pairs and returns those that were present.
func (s *Set) Remove(pairs ...Pair) []Pair {
	removed := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		token := p.String()
		if _, ok := s.tokens[token]; !ok {
			continue
		}
		delete(s.tokens, token)
		removed = append(removed, p)
	}
	return removed
}

// Contains reports whether the pair is in the set.
func (s *Set) Contains(p Pair) bool {
	_, ok := s.tokens[p.String()]
	return ok
}

// Len returns the number of subscriptions.
func (s *Set) Len() int {
	return len(s.tokens)
}

// Pairs returns the subscriptions sorted by token.
func (s *Set) Pairs() []Pair {
	tokens := make([]string, 0, len(s.tokens))
	for t := range s.tokens {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	pairs := make([]Pair, 0, len(tokens))
	for _, t := range tokens {
		p, err := Decode(t)
		if err != nil {
			continue
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// Group is every symbol requested for one channel.
type Group struct {
	Channel string
	Symbols []string
}

// GroupByChannel groups pairs by channel, keeping the order in which channels
// and symbols first appear. Duplicate pairs are collapsed.
func GroupByChannel(pairs []Pair) []Group {
	index := make(map[string]int)
	seen := make(map[string]struct{})
	groups := make([]Group, 0)
	for _, p := range pairs {
		if _, dup := seen[p.String()]; dup {
			continue
		}
		seen[p.String()] = struct{}{}
		i, ok := index[p.Channel]
		if !ok {
			i = len(groups)
			index[p.Channel] = i
			groups = append(groups, Group{Channel: p.Channel})
		}
		groups[i].Symbols = append(groups[i].Symbols, p.Symbol)
	}
	return groups
}

// Chunk splits items into slices of at most size elements. A size of zero or
// less returns a single chunk.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end])
	}
	return chunks
}
