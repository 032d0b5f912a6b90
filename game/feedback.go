// game/feedback.go
package game

import "errors"

// CodeLength is the number of digits in a secret or a guess.
const CodeLength = 4

// MaxAttempts is the per-player guess limit within one game.
const MaxAttempts = 6

// Mark labels one guessed position against the secret.
type Mark string

const (
	MarkExact   Mark = "exact"   // right digit, right position
	MarkPresent Mark = "present" // digit occurs elsewhere in the secret
	MarkAbsent  Mark = "absent"  // digit not in the secret
)

var (
	ErrInvalidSecret = errors.New("secret must be 4 unique digits")
	ErrInvalidGuess  = errors.New("guess must be 4 digits")
)

// ValidateSecret checks that secret is exactly 4 pairwise-distinct digits.
func ValidateSecret(secret string) error {
	if len(secret) != CodeLength {
		return ErrInvalidSecret
	}
	var seen [10]bool
	for i := 0; i < CodeLength; i++ {
		c := secret[i]
		if c < '0' || c > '9' {
			return ErrInvalidSecret
		}
		if seen[c-'0'] {
			return ErrInvalidSecret
		}
		seen[c-'0'] = true
	}
	return nil
}

// ValidateGuess checks that guess is exactly 4 digits. Duplicates are fine;
// only secrets require distinct digits.
func ValidateGuess(guess string) error {
	if len(guess) != CodeLength {
		return ErrInvalidGuess
	}
	for i := 0; i < CodeLength; i++ {
		if guess[i] < '0' || guess[i] > '9' {
			return ErrInvalidGuess
		}
	}
	return nil
}

// Score rates guess against secret position by position. Both inputs must
// already be validated.
//
// Exact positions are marked first; every non-exact secret digit is then
// available to satisfy at most one "present" claim, swept left to right over
// the guess. Secret digits are unique, so a duplicated guess digit can never
// collect two marks for the same secret digit.
func Score(secret, guess string) []Mark {
	marks := make([]Mark, CodeLength)
	var unused [10]int

	for i := 0; i < CodeLength; i++ {
		if guess[i] == secret[i] {
			marks[i] = MarkExact
		} else {
			unused[secret[i]-'0']++
		}
	}

	for i := 0; i < CodeLength; i++ {
		if marks[i] == MarkExact {
			continue
		}
		d := guess[i] - '0'
		if unused[d] > 0 {
			unused[d]--
			marks[i] = MarkPresent
		} else {
			marks[i] = MarkAbsent
		}
	}

	return marks
}

// IsWinning reports whether feedback is exact on all positions.
func IsWinning(feedback []Mark) bool {
	if len(feedback) != CodeLength {
		return false
	}
	for _, m := range feedback {
		if m != MarkExact {
			return false
		}
	}
	return true
}
