// Package otp generates fixed-length one-time codes for email verification
// and password reset flows.
package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	digitChars   = "0123456789"
	specialChars = "!@#$%^&*"
)

// Policy selects the length and charset of generated codes. At least one
// charset flag must be enabled.
type Policy struct {
	Length             int
	UpperCaseAlphabets bool
	LowerCaseAlphabets bool
	Digits             bool
	SpecialChars       bool
}

// RegistrationPolicy matches the codes sent on signup: six characters drawn
// from upper-case letters and digits.
func RegistrationPolicy() Policy {
	return Policy{Length: 6, UpperCaseAlphabets: true, Digits: true}
}

// ResetPolicy matches the codes sent for password reset: six digits.
func ResetPolicy() Policy {
	return Policy{Length: 6, Digits: true}
}

// Generator produces one-time codes from a fixed policy. Construct once at
// startup; Generate never fails after that.
type Generator struct {
	length  int
	charset string
}

// NewGenerator validates the policy and returns a generator. An empty charset
// or non-positive length is a configuration error and should abort startup.
func NewGenerator(p Policy) (*Generator, error) {
	if p.Length < 1 {
		return nil, fmt.Errorf("otp: invalid code length %d", p.Length)
	}

	var b strings.Builder
	if p.UpperCaseAlphabets {
		b.WriteString(upperChars)
	}
	if p.LowerCaseAlphabets {
		b.WriteString(lowerChars)
	}
	if p.Digits {
		b.WriteString(digitChars)
	}
	if p.SpecialChars {
		b.WriteString(specialChars)
	}
	if b.Len() == 0 {
		return nil, errors.New("otp: policy enables no charset")
	}

	return &Generator{length: p.Length, charset: b.String()}, nil
}

// Generate returns a new code. The random source is crypto/rand; if it is
// unavailable the process has no business issuing codes, so Generate panics
// rather than returning a per-call error.
func (g *Generator) Generate() string {
	var b strings.Builder
	b.Grow(g.length)

	max := big.NewInt(int64(len(g.charset)))
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(fmt.Sprintf("otp: random source unavailable: %v", err))
		}
		b.WriteByte(g.charset[n.Int64()])
	}
	return b.String()
}

// Length reports the configured code length.
func (g *Generator) Length() int {
	return g.length
}
