package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/sifan077/DealLink/internal/app/model"
	"github.com/sifan077/DealLink/internal/app/repository"
)

// codeAlphabet is the 62-character alphanumeric alphabet used for short codes.
const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// CodeGenerator yields candidate short codes.
type CodeGenerator func() (string, error)

// NewCodeGenerator returns a crypto-random generator of 7-character codes.
func NewCodeGenerator() (CodeGenerator, error) {
	gen, err := nanoid.CustomASCII(codeAlphabet, model.ShortLinkCodeLength)
	if err != nil {
		return nil, fmt.Errorf("init code generator: %w", err)
	}
	return func() (string, error) {
		return gen(), nil
	}, nil
}

// IsValidShortCode reports whether code has the generated shape: exactly seven
// alphanumeric characters.
func IsValidShortCode(code string) bool {
	if len(code) != model.ShortLinkCodeLength {
		return false
	}
	for _, c := range code {
		if !isAlphanumeric(c) {
			return false
		}
	}
	return true
}

func isAlphanumeric(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// CodeFilter is a bloom filter over issued short codes. A negative answer
// means the code is certainly free; a positive one must be confirmed against
// storage. A nil *CodeFilter answers "maybe" for everything.
type CodeFilter struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// NewCodeFilter sizes the filter for expected codes at the given false positive rate.
func NewCodeFilter(expected uint, falsePositiveRate float64) *CodeFilter {
	return &CodeFilter{filter: bloom.NewWithEstimates(expected, falsePositiveRate)}
}

func (f *CodeFilter) MayContain(code string) bool {
	if f == nil {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter.TestString(code)
}

func (f *CodeFilter) Add(code string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.filter.AddString(code)
	f.mu.Unlock()
}

// Warm loads every stored code into the filter and returns how many were added.
func (f *CodeFilter) Warm(ctx context.Context, links repository.LinkRepository) (int, error) {
	if f == nil {
		return 0, nil
	}
	total := 0
	err := links.EachCode(ctx, 5000, func(codes []string) error {
		f.mu.Lock()
		for _, code := range codes {
			f.filter.AddString(code)
		}
		f.mu.Unlock()
		total += len(codes)
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("warm code filter: %w", err)
	}
	return total, nil
}
