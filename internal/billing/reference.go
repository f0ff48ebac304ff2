package billing

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"academy/internal/apperror"
)

// PaymentKind is what a payment claim settles.
type PaymentKind string

const (
	KindRegistration PaymentKind = "registration"
	KindCourse       PaymentKind = "course"
)

func (k PaymentKind) Prefix() string {
	switch k {
	case KindRegistration:
		return "REG"
	case KindCourse:
		return "COURSE"
	}
	return ""
}

func (k PaymentKind) Valid() bool {
	return k.Prefix() != ""
}

func ParsePaymentKind(s string) (PaymentKind, error) {
	k := PaymentKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", apperror.Invalid("payment_type", fmt.Sprintf("unknown payment type %q", s))
	}
	return k, nil
}

// RandomSource yields a non-negative int in [0,n).
type RandomSource interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRandom draws from the process-wide math/rand/v2 generator.
var DefaultRandom RandomSource = globalRand{}

// GenerateReference mints <PREFIX><YYYYMMDD><student id, 5 digits><100-999>.
// Collisions are possible; the claim store rejects duplicates.
func GenerateReference(kind PaymentKind, studentID uint, clock time.Time, rnd RandomSource) string {
	if rnd == nil {
		rnd = DefaultRandom
	}
	return fmt.Sprintf("%s%s%05d%03d", kind.Prefix(), clock.Format("20060102"), studentID, 100+rnd.IntN(900))
}

// CheckReference verifies that ref has the shape GenerateReference produces
// for kind: prefix, a calendar date, a student id of at least five digits and
// a suffix in 100-999.
func CheckReference(kind PaymentKind, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return apperror.Invalid("payment_reference", "is required")
	}
	if len(ref) > 64 {
		return apperror.Invalid("payment_reference", "must be at most 64 characters")
	}
	if !strings.HasPrefix(ref, kind.Prefix()) {
		return apperror.Invalid("payment_reference", "must start with "+kind.Prefix())
	}

	body := strings.TrimPrefix(ref, kind.Prefix())
	if len(body) < referenceDigits || strings.TrimLeft(body, "0123456789") != "" {
		return apperror.Invalid("payment_reference", fmt.Sprintf("must be %s followed by at least %d digits", kind.Prefix(), referenceDigits))
	}
	if _, err := time.Parse("20060102", body[:8]); err != nil {
		return apperror.Invalid("payment_reference", "must carry a valid date")
	}
	if body[len(body)-3] == '0' {
		return apperror.Invalid("payment_reference", "must end in a number between 100 and 999")
	}
	return nil
}

// date (8) + student id (5, wider for larger ids) + suffix (3)
const referenceDigits = 16
