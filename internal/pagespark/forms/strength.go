package forms

import "unicode/utf8"

// StrengthLabel buckets a password score.
type StrengthLabel string

const (
	StrengthWeak   StrengthLabel = "weak"
	StrengthFair   StrengthLabel = "fair"
	StrengthGood   StrengthLabel = "good"
	StrengthStrong StrengthLabel = "strong"
)

// Strength describes how guessable a password looks.
type Strength struct {
	Score    int
	Label    StrengthLabel
	Feedback []string
}

// PasswordStrength scores length and character variety on a 0-6 scale.
func PasswordStrength(password string) Strength {
	var s Strength
	n := utf8.RuneCountInString(password)
	hasUpper := upperPattern.MatchString(password)
	hasLower := lowerPattern.MatchString(password)
	hasDigit := digitPattern.MatchString(password)
	hasOther := otherPattern.MatchString(password)

	for _, ok := range []bool{n >= 8, n >= 12, hasLower, hasUpper, hasDigit, hasOther} {
		if ok {
			s.Score++
		}
	}

	if n < 8 {
		s.Feedback = append(s.Feedback, "Use at least 8 characters")
	}
	if !hasUpper {
		s.Feedback = append(s.Feedback, "Add uppercase letters")
	}
	if !hasLower {
		s.Feedback = append(s.Feedback, "Add lowercase letters")
	}
	if !hasDigit {
		s.Feedback = append(s.Feedback, "Add numbers")
	}
	if !hasOther {
		s.Feedback = append(s.Feedback, "Add special characters")
	}

	switch {
	case s.Score <= 2:
		s.Label = StrengthWeak
	case s.Score == 3:
		s.Label = StrengthFair
	case s.Score == 4:
		s.Label = StrengthGood
	default:
		s.Label = StrengthStrong
	}
	return s
}
