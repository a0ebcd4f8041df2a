package tenant

import (
	"context"
	"math/rand/v2"
	"strconv"
	"strings"
)

const (
	usernameMinLen   = 5
	usernameMaxLen   = 8
	usernameAttempts = 200
)

// Random is the source the username generator draws from.
type Random interface {
	IntN(n int) int
}

// UsernameTaken reports whether a candidate is already in use.
type UsernameTaken func(ctx context.Context, username string) (bool, error)

// UsernameGenerator derives short admin usernames from a person's name.
type UsernameGenerator struct {
	rnd   Random
	taken UsernameTaken
}

// NewUsernameGenerator uses rnd when given, a process-wide source otherwise.
func NewUsernameGenerator(taken UsernameTaken, rnd Random) *UsernameGenerator {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &UsernameGenerator{rnd: rnd, taken: taken}
}

// Generate returns a free username of 5 to 8 characters: a random window of
// the lowercase letters of first+last, one digit, padding letters when the
// name is short, and a leading letter.
func (g *UsernameGenerator) Generate(ctx context.Context, first, last string) (string, error) {
	base := lettersOnly(first) + lettersOnly(last)
	if base == "" {
		base = "user"
	}

	for attempt := 0; attempt < usernameAttempts; attempt++ {
		candidate := g.candidate(base)
		if len(candidate) < usernameMinLen {
			continue
		}
		taken, err := g.taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrUsernameGenFailed()
}

func (g *UsernameGenerator) candidate(base string) string {
	target := usernameMinLen + g.rnd.IntN(usernameMaxLen-usernameMinLen+1)
	nameLen := max(1, target-1)

	name := base
	if len(base) > nameLen {
		start := g.rnd.IntN(len(base) - nameLen + 1)
		name = base[start : start+nameLen]
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteString(strconv.Itoa(g.rnd.IntN(10)))
	for b.Len() < target {
		b.WriteByte(byte('a' + g.rnd.IntN(26)))
	}

	candidate := b.String()
	if c := candidate[0]; c < 'a' || c > 'z' {
		candidate = "u" + candidate
	}
	if len(candidate) > usernameMaxLen {
		candidate = candidate[:usernameMaxLen]
	}
	return candidate
}

func lettersOnly(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
