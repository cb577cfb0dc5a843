package keyspace

import (
	kserrors "github.com/mtarnawa/keysweep/errors"
)

// SegmentKind identifies the role of one template segment.
type SegmentKind uint8

const (
	// SegmentLiteral is a run of fixed bytes copied verbatim.
	SegmentLiteral SegmentKind = iota
	// SegmentOne is a '?': exactly one wildcard character.
	SegmentOne
	// SegmentAny is a '*': zero or more wildcard characters.
	SegmentAny
)

// Segment is one parsed template segment.
type Segment struct {
	Kind    SegmentKind
	Literal string // set only for SegmentLiteral
}

// Template is a parsed wildcard template. The zero value is the empty
// template, which matches nothing through the templated index space and
// signals plain enumeration to callers.
type Template struct {
	Segments []Segment

	literalLen int // total bytes across literal segments
	ones       int // number of '?' segments
	stars      int // number of '*' segments
}

// ParseTemplate tokenizes a template left to right. A backslash escapes the
// next byte, forcing it into the active literal; '?' and '*' flush the active
// literal and emit a wildcard segment; every other byte extends the literal.
// A trailing lone backslash is dropped.
func ParseTemplate(src string) Template {
	var t Template
	var literal []byte
	escape := false
	flush := func() {
		if len(literal) > 0 {
			t.Segments = append(t.Segments, Segment{Kind: SegmentLiteral, Literal: string(literal)})
			t.literalLen += len(literal)
			literal = literal[:0]
		}
	}
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case escape:
			literal = append(literal, c)
			escape = false
		case c == '\\':
			escape = true
		case c == '?':
			flush()
			t.Segments = append(t.Segments, Segment{Kind: SegmentOne})
			t.ones++
		case c == '*':
			flush()
			t.Segments = append(t.Segments, Segment{Kind: SegmentAny})
			t.stars++
		default:
			literal = append(literal, c)
		}
	}
	flush()
	return t
}

// Empty reports whether the template has no segments.
func (t Template) Empty() bool { return len(t.Segments) == 0 }

// Fixed returns the fixed length contribution: literal bytes plus one byte
// per '?'. A template with no '*' matches only candidates of exactly this
// length.
func (t Template) Fixed() int { return t.literalLen + t.ones }

// Stars returns the number of '*' segments.
func (t Template) Stars() int { return t.stars }

// CountForLength returns the number of candidates of exactly the given
// length matching the template over a charset of the given size.
//
// Zero stars admit only length == Fixed(); one star admits any length >=
// Fixed(), with the star absorbing the difference. Templates with two or
// more stars cannot be counted by this scheme and yield ErrMultiStar.
// ErrCountOverflow is returned when the count exceeds 64 bits.
func (t Template) CountForLength(charsetSize uint64, length int) (uint64, error) {
	if charsetSize == 0 {
		return 0, nil
	}
	if t.stars >= 2 {
		return 0, kserrors.ErrMultiStar
	}
	fixed := t.Fixed()
	if length < fixed {
		return 0, nil
	}
	wildcards := t.ones
	if t.stars == 1 {
		wildcards += length - fixed
	} else if length != fixed {
		return 0, nil
	}
	if wildcards == 0 {
		return 1, nil
	}
	return CountForLength(charsetSize, wildcards)
}

// AtLength materializes the idx'th candidate of exactly the given length
// matching the template. The wildcard payload ('?' positions followed
// positionally by the '*' span) advances lexicographically with the leftmost
// wildcard changing slowest; literals pass through verbatim.
//
// idx must be below CountForLength for the same length.
func (t Template) AtLength(idx uint64, charset []byte, length int) (string, error) {
	charsetSize := uint64(len(charset))
	if charsetSize == 0 {
		return "", kserrors.ErrIndexOutOfRange
	}
	if t.stars >= 2 {
		return "", kserrors.ErrMultiStar
	}
	fixed := t.Fixed()
	starLen := 0
	if t.stars == 1 {
		starLen = length - fixed
		if starLen < 0 {
			return "", kserrors.ErrLengthMismatch
		}
	} else if length != fixed {
		return "", kserrors.ErrLengthMismatch
	}

	wildcards := t.ones + starLen
	payload := make([]byte, wildcards)
	if wildcards > 0 {
		count, err := CountForLength(charsetSize, wildcards)
		if err != nil {
			return "", err
		}
		if idx >= count {
			return "", kserrors.ErrIndexOutOfRange
		}
		FillAtLength(payload, idx, charset)
	} else if idx > 0 {
		return "", kserrors.ErrIndexOutOfRange
	}

	out := make([]byte, 0, length)
	next := 0
	for _, seg := range t.Segments {
		switch seg.Kind {
		case SegmentLiteral:
			out = append(out, seg.Literal...)
		case SegmentOne:
			out = append(out, payload[next])
			next++
		case SegmentAny:
			out = append(out, payload[next:next+starLen]...)
			next += starLen
		}
	}
	return string(out), nil
}

// LengthCount pairs a candidate length with the number of templated
// candidates of that length. Slices of LengthCount are kept in ascending
// length order so global routing is deterministic.
type LengthCount struct {
	Length int
	Count  uint64
}

// ByGlobalIndex routes a templated global index to a candidate. counts must
// be ascending by length; zero-count lengths are skipped. The smallest length
// whose cumulative count exceeds idx receives the remainder as its local
// index.
func (t Template) ByGlobalIndex(idx uint64, charset []byte, counts []LengthCount) (string, error) {
	remaining := idx
	for _, lc := range counts {
		if lc.Count == 0 {
			continue
		}
		if remaining < lc.Count {
			return t.AtLength(remaining, charset, lc.Length)
		}
		remaining -= lc.Count
	}
	return "", kserrors.ErrIndexOutOfRange
}
