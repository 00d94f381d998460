package auth

import "strings"

// Digits strips everything but 0-9.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidCPF checks length and both mod-11 check digits. Sequences of a single
// repeated digit are rejected even though their digits check out.
func ValidCPF(cpf string) bool {
	d := Digits(cpf)
	if len(d) != 11 || strings.Count(d, d[:1]) == 11 {
		return false
	}
	return checkDigit(d[:9], 10) == int(d[9]-'0') && checkDigit(d[:10], 11) == int(d[10]-'0')
}

func checkDigit(prefix string, weight int) int {
	sum := 0
	for i, r := range prefix {
		sum += int(r-'0') * (weight - i)
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}

// FormatCPF renders 000.000.000-00. Inputs without 11 digits are returned as
// their digits.
func FormatCPF(cpf string) string {
	d := Digits(cpf)
	if len(d) != 11 {
		return d
	}
	return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
}
