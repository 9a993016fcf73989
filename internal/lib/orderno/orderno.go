// Package orderno выдаёт номера заказов вида ORD-YYYYMMDD-<ULID>.
//
// ULID содержит миллисекундную метку времени и 80 бит энтропии. Генератор
// помнит последний выданный ULID: если новый не больше него (тот же тик и
// совпавшая энтропия, часы ушли назад), выдаётся последний плюс один.
// Поэтому номера одного генератора строго возрастают.
package orderno

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const prefix = "ORD"

// Generator безопасен для конкурентного использования.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
	last    ulid.ULID
}

// Option настраивает генератор.
type Option func(*Generator)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithEntropy подменяет источник случайности.
func WithEntropy(r io.Reader) Option {
	return func(g *Generator) { g.entropy = ulid.Monotonic(r, 0) }
}

func New(opts ...Option) *Generator {
	g := &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next возвращает следующий номер заказа.
func (g *Generator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), g.entropy)
	if err != nil {
		// ulid.ErrMonotonicOverflow: исчерпана энтропия внутри миллисекунды
		return "", fmt.Errorf("orderno: %w", err)
	}
	if id.Compare(g.last) <= 0 {
		if id, err = increment(g.last); err != nil {
			return "", fmt.Errorf("orderno: %w", err)
		}
	}
	g.last = id

	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), id.String()), nil
}

// increment прибавляет единицу к энтропийной части ULID, метка времени не меняется
func increment(id ulid.ULID) (ulid.ULID, error) {
	for i := len(id) - 1; i >= 6; i-- {
		id[i]++
		if id[i] != 0 {
			return id, nil
		}
	}
	return ulid.ULID{}, ulid.ErrMonotonicOverflow
}
