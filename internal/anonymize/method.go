package anonymize

import (
	"fmt"
)

// Method is the closed set of anonymization strategies. Modeling it as a sum
// type removes the unknown-method-string failure class at the engine level;
// only ParseMethod, the config boundary, can reject a method name.
type Method interface {
	// Name returns the config-facing method name
	Name() string
	// validate checks parameter well-formedness before any transform runs
	validate() error
}

// Mask preserves the original string length, revealing only the configured
// leading and trailing characters. Irreversible.
type Mask struct {
	VisiblePrefix int
	VisibleSuffix int
	MaskChar      rune
}

func (Mask) Name() string { return "mask" }

func (m Mask) validate() error {
	if m.VisiblePrefix < 0 {
		return &ConfigError{Method: m.Name(), Param: "visible_prefix", Reason: "must be >= 0"}
	}
	if m.VisibleSuffix < 0 {
		return &ConfigError{Method: m.Name(), Param: "visible_suffix", Reason: "must be >= 0"}
	}
	return nil
}

// Hash replaces the value with hex-encoded SHA-256(value || salt), optionally
// truncated. Deterministic for a fixed (value, salt); irreversible.
type Hash struct {
	// TruncateLen truncates the hex digest; 0 keeps the full 64 characters
	TruncateLen int
}

func (Hash) Name() string { return "hash" }

func (h Hash) validate() error {
	if h.TruncateLen < 0 || h.TruncateLen > 64 {
		return &ConfigError{Method: h.Name(), Param: "truncate_len", Reason: "must be in [0, 64]"}
	}
	return nil
}

// Pseudonymize deterministically maps each value to a synthetic replacement
// from a category-appropriate pool. Consistent within and across runs, but no
// mapping is stored; not reversible.
type Pseudonymize struct {
	CategoryHint string
}

func (Pseudonymize) Name() string { return "pseudonymize" }

func (p Pseudonymize) validate() error {
	if p.CategoryHint == "" {
		return nil
	}
	if _, ok := pseudonymPools[p.CategoryHint]; !ok {
		return &ConfigError{Method: p.Name(), Param: "category_hint",
			Reason: fmt.Sprintf("unknown pool %q", p.CategoryHint)}
	}
	return nil
}

// Generalize buckets numeric values into ranges, or folds categorical values
// outside an allow-list into a fixed bucket.
type Generalize struct {
	Bins int
	// Labels names the bins; when set, len(Labels) must equal Bins
	Labels []string
	// Ranges optionally gives explicit bin boundaries (Bins+1 ascending
	// values); when empty, equal-width bins over the observed domain apply
	Ranges []float64
	// AllowList keeps the listed categorical values; everything else becomes
	// the fallback bucket. When empty, the most frequent values are kept.
	AllowList []string
	// FallbackLabel is the bucket for out-of-list values; defaults to "Outros"
	FallbackLabel string
}

func (Generalize) Name() string { return "generalize" }

func (g Generalize) validate() error {
	if g.Bins <= 0 && len(g.Ranges) == 0 && len(g.AllowList) == 0 {
		return &ConfigError{Method: g.Name(), Param: "bins", Reason: "must be > 0"}
	}
	if len(g.Labels) > 0 && g.Bins > 0 && len(g.Labels) != g.Bins {
		return &ConfigError{Method: g.Name(), Param: "labels",
			Reason: fmt.Sprintf("got %d labels for %d bins", len(g.Labels), g.Bins)}
	}
	if len(g.Ranges) > 0 {
		if g.Bins > 0 && len(g.Ranges) != g.Bins+1 {
			return &ConfigError{Method: g.Name(), Param: "ranges",
				Reason: fmt.Sprintf("got %d boundaries for %d bins", len(g.Ranges), g.Bins)}
		}
		for i := 1; i < len(g.Ranges); i++ {
			if g.Ranges[i] <= g.Ranges[i-1] {
				return &ConfigError{Method: g.Name(), Param: "ranges", Reason: "boundaries must be ascending"}
			}
		}
	}
	return nil
}

// Suppress replaces every value unconditionally. Total information loss.
type Suppress struct {
	// Replacement defaults to "[SUPRIMIDO]"
	Replacement string
}

func (Suppress) Name() string { return "suppress" }

func (Suppress) validate() error { return nil }

// Tokenize swaps values for opaque vault-backed tokens. The only reversible
// method; Detokenize against the same vault recovers the original.
type Tokenize struct{}

func (Tokenize) Name() string { return "tokenize" }

func (Tokenize) validate() error { return nil }

// Noise perturbs numeric values by a relative percentage or a fixed additive
// level, then clips to the domain's valid range. Not deterministic across
// runs unless the engine seed is fixed.
type Noise struct {
	// Percentage scales the perturbation relative to the value
	Percentage float64
	// NoiseLevel is a fixed additive term used when Percentage is zero
	NoiseLevel float64
	// Clamp clips the output at ClampMin (non-negative domains by default)
	Clamp    bool
	ClampMin float64
}

func (Noise) Name() string { return "noise" }

func (n Noise) validate() error {
	if n.Percentage < 0 {
		return &ConfigError{Method: n.Name(), Param: "percentage", Reason: "must be >= 0"}
	}
	if n.NoiseLevel < 0 {
		return &ConfigError{Method: n.Name(), Param: "noise_level", Reason: "must be >= 0"}
	}
	if n.Percentage == 0 && n.NoiseLevel == 0 {
		return &ConfigError{Method: n.Name(), Param: "percentage", Reason: "either percentage or noise_level is required"}
	}
	return nil
}

// Spec binds a column to a method. Specs are validated before execution.
type Spec struct {
	Column string
	Method Method
}

// MethodConfig is the external config shape for one column
type MethodConfig struct {
	Method     string                 `json:"method"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// ParseMethod builds a Method from its config name and parameter map. Unknown
// method names and malformed parameters yield a ConfigError.
func ParseMethod(name string, params map[string]interface{}) (Method, error) {
	p := paramReader{method: name, params: params}

	var method Method
	switch name {
	case "mask":
		method = Mask{
			VisiblePrefix: p.intVal("visible_prefix", 0),
			VisibleSuffix: p.intVal("visible_suffix", 0),
			MaskChar:      p.runeVal("mask_char", '*'),
		}
	case "hash":
		method = Hash{
			TruncateLen: p.intVal("truncate_len", 0),
		}
	case "pseudonymize":
		method = Pseudonymize{
			CategoryHint: p.stringVal("category_hint", ""),
		}
	case "generalize":
		method = Generalize{
			Bins:          p.intVal("bins", 0),
			Labels:        p.stringsVal("labels"),
			Ranges:        p.floatsVal("ranges"),
			AllowList:     p.stringsVal("allow_list"),
			FallbackLabel: p.stringVal("fallback_label", ""),
		}
	case "suppress":
		method = Suppress{
			Replacement: p.stringVal("replacement", ""),
		}
	case "tokenize":
		method = Tokenize{}
	case "noise":
		method = Noise{
			Percentage: p.floatVal("percentage", 0),
			NoiseLevel: p.floatVal("noise_level", 0),
			Clamp:      p.boolVal("clamp", true),
			ClampMin:   p.floatVal("clamp_min", 0),
		}
	default:
		return nil, &ConfigError{Method: name, Reason: "unknown anonymization method"}
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := method.validate(); err != nil {
		return nil, err
	}
	return method, nil
}

// ParseSpecs converts the external column→method config mapping into specs
func ParseSpecs(config map[string]MethodConfig) ([]Spec, error) {
	specs := make([]Spec, 0, len(config))
	for column, mc := range config {
		method, err := ParseMethod(mc.Method, mc.Parameters)
		if err != nil {
			if ce, ok := err.(*ConfigError); ok {
				ce.Column = column
			}
			return nil, err
		}
		specs = append(specs, Spec{Column: column, Method: method})
	}
	return specs, nil
}

// paramReader extracts typed parameters, remembering the first error
type paramReader struct {
	method string
	params map[string]interface{}
	err    error
}

func (p *paramReader) fail(param, reason string) {
	if p.err == nil {
		p.err = &ConfigError{Method: p.method, Param: param, Reason: reason}
	}
}

func (p *paramReader) intVal(key string, def int) int {
	raw, ok := p.params[key]
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		p.fail(key, "expected a number")
		return def
	}
}

func (p *paramReader) floatVal(key string, def float64) float64 {
	raw, ok := p.params[key]
	if !ok {
		return def
	}
	switch v := raw.(type) {
	case int:
		return float64(v)
	case float64:
		return v
	default:
		p.fail(key, "expected a number")
		return def
	}
}

func (p *paramReader) stringVal(key string, def string) string {
	raw, ok := p.params[key]
	if !ok {
		return def
	}
	s, ok := raw.(string)
	if !ok {
		p.fail(key, "expected a string")
		return def
	}
	return s
}

func (p *paramReader) runeVal(key string, def rune) rune {
	s := p.stringVal(key, string(def))
	if s == "" {
		return def
	}
	return []rune(s)[0]
}

func (p *paramReader) boolVal(key string, def bool) bool {
	raw, ok := p.params[key]
	if !ok {
		return def
	}
	b, ok := raw.(bool)
	if !ok {
		p.fail(key, "expected a boolean")
		return def
	}
	return b
}

func (p *paramReader) stringsVal(key string) []string {
	raw, ok := p.params[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				p.fail(key, "expected a list of strings")
				return nil
			}
			out = append(out, s)
		}
		return out
	default:
		p.fail(key, "expected a list of strings")
		return nil
	}
}

func (p *paramReader) floatsVal(key string) []float64 {
	raw, ok := p.params[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []float64:
		return v
	case []interface{}:
		out := make([]float64, 0, len(v))
		for _, item := range v {
			switch f := item.(type) {
			case float64:
				out = append(out, f)
			case int:
				out = append(out, float64(f))
			default:
				p.fail(key, "expected a list of numbers")
				return nil
			}
		}
		return out
	default:
		p.fail(key, "expected a list of numbers")
		return nil
	}
}
