package pii

import "strings"

// ValidateCPF checks the two CPF verification digits
func ValidateCPF(cpf string) bool {
	digits := onlyDigits(cpf)
	if len(digits) != 11 {
		return false
	}
	if allSame(digits) {
		return false
	}

	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(digits[i]-'0') * (10 - i)
	}
	d1 := checkDigit(sum)

	sum = 0
	for i := 0; i < 10; i++ {
		sum += int(digits[i]-'0') * (11 - i)
	}
	d2 := checkDigit(sum)

	return int(digits[9]-'0') == d1 && int(digits[10]-'0') == d2
}

// ValidateCNPJ checks the two CNPJ verification digits
func ValidateCNPJ(cnpj string) bool {
	digits := onlyDigits(cnpj)
	if len(digits) != 14 {
		return false
	}
	if allSame(digits) {
		return false
	}

	weights1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	sum := 0
	for i, w := range weights1 {
		sum += int(digits[i]-'0') * w
	}
	d1 := checkDigit(sum)

	weights2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	sum = 0
	for i, w := range weights2 {
		sum += int(digits[i]-'0') * w
	}
	d2 := checkDigit(sum)

	return int(digits[12]-'0') == d1 && int(digits[13]-'0') == d2
}

func checkDigit(sum int) int {
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
