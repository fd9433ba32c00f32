package order

import "strconv"

// FormatAmount renders whole pesos with "." as thousands separator: 1234567 -> "1.234.567".
func FormatAmount(v int64) string {
	digits := strconv.FormatInt(v, 10)
	neg := digits[0] == '-'
	if neg {
		digits = digits[1:]
	}
	out := make([]byte, 0, len(digits)+len(digits)/3+1)
	if neg {
		out = append(out, '-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	out = append(out, digits[:lead]...)
	for i := lead; i < len(digits); i += 3 {
		out = append(out, '.')
		out = append(out, digits[i:i+3]...)
	}
	return string(out)
}
