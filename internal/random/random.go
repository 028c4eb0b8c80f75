package random

import (
	"crypto/rand"
	"math/big"
	mrand "math/rand"

	"github.com/rias-glitch/casino-backend/internal/models"
)

// Source — источник случайности для движка споров. Назначение стороны при
// создании и бросок монеты идут через один и тот же источник, чтобы в тестах
// его можно было подменить детерминированным.
type Source interface {
	// Intn возвращает равномерно распределённое число из [0, n).
	Intn(n int) int
	// Side возвращает случайную сторону монеты.
	Side() string
}

// CryptoSource — источник на crypto/rand. Используется в production.
type CryptoSource struct{}

// NewCryptoSource создаёт криптографический источник случайности.
func NewCryptoSource() *CryptoSource {
	return &CryptoSource{}
}

func (s *CryptoSource) Intn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand на поддерживаемых платформах не возвращает ошибок;
		// если это всё же случилось, продолжать бросок нельзя.
		panic("random: crypto source failed: " + err.Error())
	}
	return int(v.Int64())
}

func (s *CryptoSource) Side() string {
	if s.Intn(2) == 0 {
		return models.SideHeads
	}
	return models.SideTails
}

// SeededSource — детерминированный источник для тестов.
type SeededSource struct {
	rnd *mrand.Rand
}

// NewSeededSource создаёт источник с фиксированным зерном.
func NewSeededSource(seed int64) *SeededSource {
	return &SeededSource{rnd: mrand.New(mrand.NewSource(seed))}
}

func (s *SeededSource) Intn(n int) int {
	return s.rnd.Intn(n)
}

func (s *SeededSource) Side() string {
	if s.rnd.Intn(2) == 0 {
		return models.SideHeads
	}
	return models.SideTails
}
