package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var cnpjMask = regexp.MustCompile(`^\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}$`)

// OnlyDigits strips every non-digit rune.
func OnlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// HasCNPJMask reports whether s is written as XX.XXX.XXX/XXXX-XX.
func HasCNPJMask(s string) bool {
	return cnpjMask.MatchString(s)
}

// ValidCNPJ checks the two CNPJ check digits.
func ValidCNPJ(s string) bool {
	d := OnlyDigits(s)
	if len(d) != 14 || allSame(d) {
		return false
	}
	w1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(d[:12], w1) == int(d[12]-'0') &&
		checkDigit(d[:13], w2) == int(d[13]-'0')
}

// ValidCPF checks the two CPF check digits.
func ValidCPF(s string) bool {
	d := OnlyDigits(s)
	if len(d) != 11 || allSame(d) {
		return false
	}
	w1 := []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(d[:9], w1) == int(d[9]-'0') &&
		checkDigit(d[:10], w2) == int(d[10]-'0')
}

// FormatCNPJ returns a digits-only CNPJ with its mask applied.
func FormatCNPJ(digits string) string {
	if len(digits) != 14 {
		return digits
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s", digits[:2], digits[2:5], digits[5:8], digits[8:12], digits[12:14])
}

func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

func allSame(s string) bool {
	return strings.Count(s, s[:1]) == len(s)
}
