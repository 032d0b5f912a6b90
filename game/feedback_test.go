package game

import "testing"

func marksEqual(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScoreCases(t *testing.T) {
	cases := []struct {
		secret string
		guess  string
		want   []Mark
	}{
		{"1234", "1234", []Mark{MarkExact, MarkExact, MarkExact, MarkExact}},
		{"1234", "1243", []Mark{MarkExact, MarkExact, MarkPresent, MarkPresent}},
		{"1234", "4321", []Mark{MarkPresent, MarkPresent, MarkPresent, MarkPresent}},
		{"1234", "5678", []Mark{MarkAbsent, MarkAbsent, MarkAbsent, MarkAbsent}},
		{"1234", "1567", []Mark{MarkExact, MarkAbsent, MarkAbsent, MarkAbsent}},
		{"1234", "5634", []Mark{MarkAbsent, MarkAbsent, MarkExact, MarkExact}},
	}

	for _, c := range cases {
		got := Score(c.secret, c.guess)
		if !marksEqual(got, c.want) {
			t.Errorf("Score(%s, %s): expected %v, got %v", c.secret, c.guess, c.want, got)
		}
	}
}

func TestScoreDuplicateGuessDigits(t *testing.T) {
	// A secret digit may satisfy at most one mark across the whole guess, so
	// duplicated guess digits never double-count.
	got := Score("1234", "1111")
	want := []Mark{MarkExact, MarkAbsent, MarkAbsent, MarkAbsent}
	if !marksEqual(got, want) {
		t.Errorf("Score(1234, 1111): expected %v, got %v", want, got)
	}

	got = Score("1234", "4411")
	want = []Mark{MarkPresent, MarkAbsent, MarkPresent, MarkAbsent}
	if !marksEqual(got, want) {
		t.Errorf("Score(1234, 4411): expected %v, got %v", want, got)
	}

	// Duplicate lands on the exact position: the exact claim consumes the
	// secret digit, the copies must not also score present.
	got = Score("1234", "4434")
	want = []Mark{MarkAbsent, MarkAbsent, MarkExact, MarkExact}
	if !marksEqual(got, want) {
		t.Errorf("Score(1234, 4434): expected %v, got %v", want, got)
	}
}

func TestScoreSelfIsAllExact(t *testing.T) {
	for _, secret := range []string{"1234", "0987", "5062", "9153"} {
		got := Score(secret, secret)
		if !IsWinning(got) {
			t.Errorf("Score(%s, %s): expected all exact, got %v", secret, secret, got)
		}
	}
}

func TestScoreExactCountMatchesAgreeingPositions(t *testing.T) {
	secret := "5062"
	guesses := []string{"5062", "5026", "1111", "5555", "0652", "9999"}
	for _, guess := range guesses {
		agree := 0
		for i := 0; i < CodeLength; i++ {
			if guess[i] == secret[i] {
				agree++
			}
		}
		exact := 0
		for _, m := range Score(secret, guess) {
			if m == MarkExact {
				exact++
			}
		}
		if exact != agree {
			t.Errorf("Score(%s, %s): expected %d exact marks, got %d", secret, guess, agree, exact)
		}
	}
}

func TestValidateSecret(t *testing.T) {
	valid := []string{"1234", "0987", "5062"}
	for _, s := range valid {
		if err := ValidateSecret(s); err != nil {
			t.Errorf("ValidateSecret(%s): expected nil, got %v", s, err)
		}
	}

	invalid := []string{"", "123", "12345", "1122", "1111", "12a4", "abcd", "12 4"}
	for _, s := range invalid {
		if err := ValidateSecret(s); err != ErrInvalidSecret {
			t.Errorf("ValidateSecret(%s): expected ErrInvalidSecret, got %v", s, err)
		}
	}
}

func TestValidateGuess(t *testing.T) {
	// Unlike secrets, guesses may repeat digits.
	valid := []string{"1234", "1122", "0000"}
	for _, g := range valid {
		if err := ValidateGuess(g); err != nil {
			t.Errorf("ValidateGuess(%s): expected nil, got %v", g, err)
		}
	}

	invalid := []string{"", "123", "12345", "12a4", "abcd"}
	for _, g := range invalid {
		if err := ValidateGuess(g); err != ErrInvalidGuess {
			t.Errorf("ValidateGuess(%s): expected ErrInvalidGuess, got %v", g, err)
		}
	}
}

func TestIsWinning(t *testing.T) {
	if !IsWinning([]Mark{MarkExact, MarkExact, MarkExact, MarkExact}) {
		t.Error("Expected all-exact feedback to be winning")
	}
	if IsWinning([]Mark{MarkExact, MarkExact, MarkExact, MarkPresent}) {
		t.Error("Expected mixed feedback not to be winning")
	}
	if IsWinning(nil) {
		t.Error("Expected empty feedback not to be winning")
	}
}
