// Package matchid generates match identifiers and private room codes.
package matchid

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// Crockford's base32, lower case, as used by TypeID.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// CodeLength is the length of a private room code.
const CodeLength = 6

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// Generator creates ids from a random source.
type Generator struct {
	rand io.Reader
}

// NewGenerator creates a generator. A nil reader uses crypto/rand.
func NewGenerator(r io.Reader) *Generator {
	if r == nil {
		r = rand.Reader
	}
	return &Generator{rand: r}
}

// Generate returns a time-ordered match id: a UUIDv7 encoded as 26
// base32 characters.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate returns a new match id.
func (g *Generator) Generate() string {
	id, err := uuid.NewV7FromReader(g.rand)
	if err != nil {
		panic("failed to generate match id: " + err.Error())
	}
	return encoding.EncodeToString(id[:])
}

// RoomCode returns a short upper-case code players share to join a private
// room.
func (g *Generator) RoomCode() string {
	buf := make([]byte, CodeLength)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		panic("failed to generate room code: " + err.Error())
	}
	code := make([]byte, CodeLength)
	for i, b := range buf {
		code[i] = alphabet[int(b)%len(alphabet)]
	}
	return strings.ToUpper(string(code))
}

// Validate checks that id is a well formed match id.
func Validate(id string) error {
	if len(id) != 26 {
		return fmt.Errorf("match id %q: want 26 characters, got %d", id, len(id))
	}
	raw, err := encoding.DecodeString(id)
	if err != nil {
		return fmt.Errorf("match id %q: %w", id, err)
	}
	if v := raw[6] >> 4; v != 7 {
		return fmt.Errorf("match id %q: version %d, want 7", id, v)
	}
	return nil
}

// AISeatID names the n-th AI seat of a local match.
func AISeatID(n int) string {
	return fmt.Sprintf("AI_%d", n)
}
