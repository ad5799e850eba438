// Package codegen produces short human-shareable codes from an alphabet
// without visually ambiguous symbols (no I, O, 0 or 1).
package codegen

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const groupLen = 4

// Generator draws symbols from an io.Reader. The zero value is not usable;
// use New or Default.
type Generator struct {
	src io.Reader
}

// New returns a generator reading randomness from src.
func New(src io.Reader) *Generator {
	return &Generator{src: src}
}

// Default returns a generator backed by crypto/rand.
func Default() *Generator {
	return New(rand.Reader)
}

// JoinCode returns an 8-symbol code shaped XXXX-XXXX.
func (g *Generator) JoinCode() (string, error) {
	return g.grouped(2)
}

// InviteCode returns a 12-symbol code shaped XXXX-XXXX-XXXX.
func (g *Generator) InviteCode() (string, error) {
	return g.grouped(3)
}

func (g *Generator) grouped(groups int) (string, error) {
	buf := make([]byte, groups*groupLen)
	if _, err := io.ReadFull(g.src, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	// 256 is a multiple of 32, so the modulo is unbiased.
	parts := make([]string, groups)
	for i := range parts {
		var sb strings.Builder
		for _, b := range buf[i*groupLen : (i+1)*groupLen] {
			sb.WriteByte(Alphabet[int(b)%len(Alphabet)])
		}
		parts[i] = sb.String()
	}
	return strings.Join(parts, "-"), nil
}

// Valid reports whether code has either generated shape and only uses the
// alphabet.
func Valid(code string) bool {
	parts := strings.Split(code, "-")
	if len(parts) != 2 && len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if len(p) != groupLen {
			return false
		}
		for i := 0; i < len(p); i++ {
			if strings.IndexByte(Alphabet, p[i]) < 0 {
				return false
			}
		}
	}
	return true
}

// Normalize trims and upper-cases a user-entered code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
