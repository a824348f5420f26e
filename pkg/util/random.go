package util

import (
	nanoid "github.com/jaevor/go-nanoid"
)

// ReferenceAlphabet omits characters that are easy to misread (0/O, 1/I).
const ReferenceAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// ReferenceLength is the number of random characters in an order reference.
const ReferenceLength = 10

// NewReferenceGenerator returns a generator of purchase references such as
// "PED-7KQ2M9XHRD".
func NewReferenceGenerator() (func() string, error) {
	gen, err := nanoid.CustomASCII(ReferenceAlphabet, ReferenceLength)
	if err != nil {
		return nil, err
	}
	return func() string {
		return "PED-" + gen()
	}, nil
}
