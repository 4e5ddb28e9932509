package domain

import (
	"strings"
)

// NormalizeRUT strips thousands separators and whitespace and upper-cases the
// check digit: "12.345.678-k" becomes "12345678-K".
func NormalizeRUT(rut string) string {
	rut = strings.TrimSpace(rut)
	rut = strings.ReplaceAll(rut, ".", "")
	rut = strings.ReplaceAll(rut, " ", "")
	return strings.ToUpper(rut)
}

// ValidRUT reports whether rut is a well-formed Chilean national ID whose
// check digit matches the modulo-11 checksum of its body.
func ValidRUT(rut string) bool {
	rut = NormalizeRUT(rut)
	body, dv, ok := splitRUT(rut)
	if !ok {
		return false
	}
	return rutCheckDigit(body) == dv
}

func splitRUT(rut string) (string, byte, bool) {
	if idx := strings.LastIndexByte(rut, '-'); idx >= 0 {
		if idx != len(rut)-2 {
			return "", 0, false
		}
		rut = rut[:idx] + rut[idx+1:]
	}
	if len(rut) < 2 || len(rut) > 9 {
		return "", 0, false
	}
	body := rut[:len(rut)-1]
	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			return "", 0, false
		}
	}
	dv := rut[len(rut)-1]
	if (dv < '0' || dv > '9') && dv != 'K' {
		return "", 0, false
	}
	return body, dv, true
}

func rutCheckDigit(body string) byte {
	sum := 0
	factor := 2
	for i := len(body) - 1; i >= 0; i-- {
		sum += int(body[i]-'0') * factor
		factor++
		if factor > 7 {
			factor = 2
		}
	}
	switch rest := 11 - sum%11; rest {
	case 11:
		return '0'
	case 10:
		return 'K'
	default:
		return byte('0' + rest)
	}
}
