package anonymize

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/lgpdkit/pii-sentinel/internal/dataset"
)

// DefaultSuppressReplacement is the fixed replacement for suppressed cells
const DefaultSuppressReplacement = "[SUPRIMIDO]"

// pseudonymPools holds the synthetic replacement values per category hint
var pseudonymPools = map[string][]string{
	"name": {
		"Antônio Ferreira", "Beatriz Costa", "Caio Monteiro", "Daniela Rocha",
		"Elias Andrade", "Fernanda Duarte", "Gustavo Pires", "Helena Moraes",
		"Igor Carvalho", "Juliana Freitas", "Leonardo Vieira", "Marina Lopes",
		"Otávio Ramos", "Patrícia Nunes", "Renato Borges", "Simone Castro",
	},
	"email": {
		"contato01@example.com", "contato02@example.com", "contato03@example.com",
		"contato04@example.com", "contato05@example.com", "contato06@example.com",
		"contato07@example.com", "contato08@example.com", "contato09@example.com",
		"contato10@example.com", "contato11@example.com", "contato12@example.com",
	},
	"phone": {
		"(11) 90000-0001", "(21) 90000-0002", "(31) 90000-0003",
		"(41) 90000-0004", "(51) 90000-0005", "(61) 90000-0006",
		"(71) 90000-0007", "(81) 90000-0008", "(91) 90000-0009",
	},
	"city": {
		"São Paulo", "Rio de Janeiro", "Belo Horizonte", "Curitiba",
		"Porto Alegre", "Recife", "Salvador", "Fortaleza", "Manaus",
	},
	"address": {
		"Rua Fictícia, 100", "Avenida Exemplo, 200", "Travessa Modelo, 300",
		"Rua Ilustrativa, 400", "Avenida Sintética, 500", "Alameda Genérica, 600",
	},
}

// maskValue masks one stringified value, preserving its length
func maskValue(text string, m Mask) string {
	runes := []rune(text)
	length := len(runes)

	prefix := m.VisiblePrefix
	if prefix > length {
		prefix = length
	}
	suffix := m.VisibleSuffix
	if suffix > length-prefix {
		suffix = length - prefix
	}

	maskChar := m.MaskChar
	if maskChar == 0 {
		maskChar = '*'
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < prefix; i++ {
		b.WriteRune(runes[i])
	}
	for i := prefix; i < length-suffix; i++ {
		b.WriteRune(maskChar)
	}
	for i := length - suffix; i < length; i++ {
		b.WriteRune(runes[i])
	}
	return b.String()
}

// hashValue computes hex(SHA-256(value || salt)), optionally truncated
func hashValue(text string, salt Salt, truncateLen int) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write(salt.Value)
	digest := hex.EncodeToString(h.Sum(nil))
	if truncateLen > 0 && truncateLen < len(digest) {
		digest = digest[:truncateLen]
	}
	return digest
}

// pseudonymFor deterministically picks a pool entry from the value's hash
func pseudonymFor(text, categoryHint string) string {
	sum := sha256.Sum256([]byte(text))
	index := binary.BigEndian.Uint64(sum[:8])

	pool, ok := pseudonymPools[categoryHint]
	if !ok || len(pool) == 0 {
		// No pool for the hint: derive a stable opaque identifier instead
		return "ID_" + hex.EncodeToString(sum[:4])
	}
	return pool[index%uint64(len(pool))]
}

// applyMask masks every non-null cell
func applyMask(col *dataset.Column, m Mask) ([]dataset.Value, error) {
	out := make([]dataset.Value, len(col.Values))
	for i, v := range col.Values {
		if v.IsNull() {
			out[i] = v
			continue
		}
		out[i] = dataset.String(maskValue(v.Text(), m))
	}
	return out, nil
}

// applyHash hashes every non-null cell with the engine salt
func applyHash(col *dataset.Column, h Hash, salt Salt) ([]dataset.Value, error) {
	out := make([]dataset.Value, len(col.Values))
	for i, v := range col.Values {
		if v.IsNull() {
			out[i] = v
			continue
		}
		out[i] = dataset.String(hashValue(v.Text(), salt, h.TruncateLen))
	}
	return out, nil
}

// applyPseudonymize swaps values for pool entries keyed by value hash
func applyPseudonymize(col *dataset.Column, p Pseudonymize) ([]dataset.Value, error) {
	out := make([]dataset.Value, len(col.Values))
	for i, v := range col.Values {
		if v.IsNull() {
			out[i] = v
			continue
		}
		out[i] = dataset.String(pseudonymFor(v.Text(), p.CategoryHint))
	}
	return out, nil
}

// applySuppress replaces every cell, nulls included
func applySuppress(col *dataset.Column, s Suppress) ([]dataset.Value, error) {
	replacement := s.Replacement
	if replacement == "" {
		replacement = DefaultSuppressReplacement
	}
	out := make([]dataset.Value, len(col.Values))
	for i := range col.Values {
		out[i] = dataset.String(replacement)
	}
	return out, nil
}

// applyTokenize swaps values for vault tokens
func applyTokenize(col *dataset.Column, vault *TokenVault) ([]dataset.Value, error) {
	out := make([]dataset.Value, len(col.Values))
	for i, v := range col.Values {
		if v.IsNull() {
			out[i] = v
			continue
		}
		out[i] = dataset.String(vault.Tokenize(v.Text()))
	}
	return out, nil
}

// applyNoise perturbs numeric cells and clips to the configured floor
func applyNoise(col *dataset.Column, n Noise, rng *rand.Rand) ([]dataset.Value, error) {
	out := make([]dataset.Value, len(col.Values))
	for i, v := range col.Values {
		if v.IsNull() {
			out[i] = v
			continue
		}
		x, ok := v.Float()
		if !ok {
			return nil, fmt.Errorf("noise requires a numeric column, found %q", v.Text())
		}

		u := rng.Float64()*2 - 1 // uniform(-1, 1)
		var noised float64
		if n.Percentage > 0 {
			noised = x + x*n.Percentage*u
		} else {
			noised = x + n.NoiseLevel*u
		}

		if n.Clamp && noised < n.ClampMin {
			noised = n.ClampMin
		}
		out[i] = dataset.Number(noised)
	}
	return out, nil
}

// applyGeneralize buckets numeric columns into ranges and folds categorical
// columns into an allow-list plus a fallback bucket
func applyGeneralize(col *dataset.Column, g Generalize) ([]dataset.Value, error) {
	if col.Kind() == dataset.ColumnNumeric || len(g.Ranges) > 0 {
		return generalizeNumeric(col, g)
	}
	return generalizeCategorical(col, g)
}

func generalizeNumeric(col *dataset.Column, g Generalize) ([]dataset.Value, error) {
	values := make([]float64, 0, len(col.Values))
	for _, v := range col.Values {
		if v.IsNull() {
			continue
		}
		x, ok := v.Float()
		if !ok {
			return nil, fmt.Errorf("numeric generalize requires a numeric column, found %q", v.Text())
		}
		values = append(values, x)
	}
	if len(values) == 0 {
		return append([]dataset.Value(nil), col.Values...), nil
	}

	boundaries := g.Ranges
	bins := g.Bins
	if len(boundaries) == 0 {
		lo, hi := values[0], values[0]
		for _, x := range values {
			if x < lo {
				lo = x
			}
			if x > hi {
				hi = x
			}
		}
		if hi == lo {
			hi = lo + 1
		}
		width := (hi - lo) / float64(bins)
		boundaries = make([]float64, bins+1)
		for i := 0; i <= bins; i++ {
			boundaries[i] = lo + width*float64(i)
		}
		boundaries[bins] = hi
	} else {
		bins = len(boundaries) - 1
	}

	labels := g.Labels
	if len(labels) == 0 {
		labels = make([]string, bins)
		for i := 0; i < bins; i++ {
			labels[i] = fmt.Sprintf("%g-%g", boundaries[i], boundaries[i+1])
		}
	}

	out := make([]dataset.Value, len(col.Values))
	for i, v := range col.Values {
		if v.IsNull() {
			out[i] = v
			continue
		}
		x, _ := v.Float()
		out[i] = dataset.String(labels[binIndex(x, boundaries)])
	}
	return out, nil
}

// binIndex places x into its bin: lower bound inclusive, upper exclusive,
// final bin inclusive on both ends. Out-of-domain values clamp to the edge
// bins.
func binIndex(x float64, boundaries []float64) int {
	bins := len(boundaries) - 1
	if x < boundaries[0] {
		return 0
	}
	for i := 0; i < bins; i++ {
		if x >= boundaries[i] && x < boundaries[i+1] {
			return i
		}
	}
	return bins - 1
}

func generalizeCategorical(col *dataset.Column, g Generalize) ([]dataset.Value, error) {
	fallback := g.FallbackLabel
	if fallback == "" {
		fallback = "Outros"
	}

	allowed := make(map[string]bool, len(g.AllowList))
	for _, v := range g.AllowList {
		allowed[v] = true
	}

	// Without an explicit allow-list, keep the most frequent values and fold
	// the long tail into the fallback bucket
	if len(allowed) == 0 {
		counts := make(map[string]int)
		for _, v := range col.Values {
			if !v.IsNull() {
				counts[v.Text()]++
			}
		}
		type freq struct {
			value string
			count int
		}
		ranked := make([]freq, 0, len(counts))
		for value, count := range counts {
			ranked = append(ranked, freq{value, count})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].count != ranked[j].count {
				return ranked[i].count > ranked[j].count
			}
			return ranked[i].value < ranked[j].value
		})

		keep := g.Bins - 1
		if keep < 1 {
			keep = 1
		}
		for i := 0; i < keep && i < len(ranked); i++ {
			allowed[ranked[i].value] = true
		}
	}

	out := make([]dataset.Value, len(col.Values))
	for i, v := range col.Values {
		if v.IsNull() {
			out[i] = v
			continue
		}
		if allowed[v.Text()] {
			out[i] = dataset.String(v.Text())
		} else {
			out[i] = dataset.String(fallback)
		}
	}
	return out, nil
}

// MaskCPF masks a CPF keeping the first three and last two digits
func MaskCPF(cpf string) string {
	digits := onlyDigits(cpf)
	if len(digits) != 11 {
		return "***.***.***-**"
	}
	return fmt.Sprintf("%s.***.***-%s", digits[:3], digits[9:])
}

// MaskEmail masks the local part of an email keeping its first character and
// the full domain
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***@***.***"
	}
	user, domain := email[:at], email[at+1:]
	if len(user) == 1 {
		return "*@" + domain
	}
	return user[:1] + strings.Repeat("*", len(user)-1) + "@" + domain
}

// MaskPhone masks a Brazilian phone number keeping the area code
func MaskPhone(phone string) string {
	digits := onlyDigits(phone)
	if len(digits) < 10 {
		return "(**) *****-****"
	}
	return fmt.Sprintf("(%s) *****-****", digits[:2])
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
