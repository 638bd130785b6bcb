package pattern

import "strconv"

// sequenceLength is the size of the arabic canonical list.
const sequenceLength = 100

var sequences = map[string][]string{
	"roman":  romanSequence(39),
	"arabic": arabicSequence(sequenceLength),
	"upper":  letterSequence('A'),
	"lower":  letterSequence('a'),
}

func arabicSequence(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}

func letterSequence(first rune) []string {
	out := make([]string, 26)
	for i := range out {
		out[i] = string(first + rune(i))
	}
	return out
}

// romanSequence lists I..n. Only tens and units are needed: the catalog
// restricts roman numerals to 39 so that "C. " and "D. " stay letters.
func romanSequence(n int) []string {
	units := []string{"", "I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX"}
	tens := []string{"", "X", "XX", "XXX"}
	out := make([]string, n)
	for i := 1; i <= n; i++ {
		out[i-1] = tens[i/10] + units[i%10]
	}
	return out
}
