// Package ids generates prefixed, time-sortable identifiers for run and
// alert rows ("run_0CL2Kw…", "alert_0CL2Kx…"). A 6-char base62 timestamp
// prefix keeps B-tree index locality; the random tail is drawn from
// crypto/rand with rejection sampling for a uniform base62 distribution.
package ids

import (
	crand "crypto/rand"
	"strings"
	"time"
)

const base62 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const randomLength = 18

// New returns a new identifier with the given prefix, e.g. New("run").
func New(prefix string) string {
	return prefix + "_" + encodeTimestamp(time.Now().Unix()) + randomBase62(randomLength)
}

// encodeTimestamp renders a Unix timestamp (seconds) as a fixed-width,
// lexicographically sortable 6-char base62 string.
func encodeTimestamp(sec int64) string {
	out := make([]byte, 6)
	for i := 5; i >= 0; i-- {
		out[i] = base62[sec%62]
		sec /= 62
	}
	return string(out)
}

// randomBase62 produces n uniformly distributed base62 characters.
// 6-bit samples >= 62 are rejected to avoid modulo bias.
func randomBase62(n int) string {
	var sb strings.Builder
	sb.Grow(n)

	buf := make([]byte, n+8)
	mustRead(buf)
	var bits uint64
	var nbits uint
	idx := 0

	for sb.Len() < n {
		for nbits < 6 {
			if idx >= len(buf) {
				mustRead(buf)
				idx = 0
			}
			bits = bits<<8 | uint64(buf[idx])
			nbits += 8
			idx++
		}
		v := (bits >> (nbits - 6)) & 0x3f
		nbits -= 6
		if v < 62 {
			sb.WriteByte(base62[v])
		}
	}
	return sb.String()
}

func mustRead(buf []byte) {
	if _, err := crand.Read(buf); err != nil {
		panic("ids: crypto/rand read failed: " + err.Error())
	}
}
