package pii

import (
	"regexp"
	"strings"
)

// Rule holds the detection evidence for one category: an optional content
// pattern and the column-name aliases that act as a strong prior. Categories
// without a pattern are detectable through their aliases only.
type Rule struct {
	Category Category
	Pattern  *regexp.Regexp
	Aliases  []string
}

// Registry is the immutable set of detection rules, built once at startup
type Registry struct {
	rules []Rule
}

// DefaultRules returns the built-in detection rules for Brazilian PII
func DefaultRules() []Rule {
	return []Rule{
		{
			Category: CategoryCPF,
			Pattern:  regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`),
			Aliases:  []string{"cpf", "documento"},
		},
		{
			Category: CategoryCNPJ,
			Pattern:  regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`),
			Aliases:  []string{"cnpj"},
		},
		{
			Category: CategoryRG,
			Pattern:  regexp.MustCompile(`\b\d{1,2}\.?\d{3}\.?\d{3}-?[0-9Xx]\b`),
			Aliases:  []string{"rg", "identidade"},
		},
		{
			Category: CategoryCNH,
			Pattern:  regexp.MustCompile(`\b\d{11}\b`),
			Aliases:  []string{"cnh", "habilitacao"},
		},
		{
			Category: CategoryPassport,
			Pattern:  regexp.MustCompile(`\b[A-Z]{2}\d{6}\b`),
			Aliases:  []string{"passaporte", "passport"},
		},
		{
			Category: CategoryEmail,
			Pattern:  regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
			Aliases:  []string{"email", "e_mail", "correio"},
		},
		{
			Category: CategoryPhone,
			Pattern:  regexp.MustCompile(`\(?\d{2}\)?\s?\d{4,5}-?\d{4}`),
			Aliases:  []string{"telefone", "celular", "fone", "phone", "mobile"},
		},
		{
			Category: CategoryCreditCard,
			Pattern:  regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`),
			Aliases:  []string{"cartao", "credit_card"},
		},
		{
			Category: CategoryBankAccount,
			Aliases:  []string{"conta", "agencia", "banco", "salario", "renda", "pis", "pasep"},
		},
		{
			Category: CategoryPostalCode,
			Pattern:  regexp.MustCompile(`\b\d{5}-?\d{3}\b`),
			Aliases:  []string{"cep", "codigo_postal", "zip"},
		},
		{
			Category: CategoryAddress,
			Aliases:  []string{"endereco", "logradouro", "rua", "avenida", "address", "bairro"},
		},
		{
			Category: CategoryName,
			Aliases:  []string{"nome", "name", "sobrenome"},
		},
		{
			Category: CategoryDateOfBirth,
			Pattern:  regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`),
			Aliases:  []string{"nascimento", "birth"},
		},
		{
			Category: CategoryHealthData,
			Aliases:  []string{"cid", "diagnostico", "doenca", "medicamento", "prontuario", "cns", "saude"},
		},
		{
			Category: CategoryBiometric,
			Aliases:  []string{"digital", "biometria", "face", "iris", "voz"},
		},
	}
}

// NewRegistry creates a registry from the given rules
func NewRegistry(rules []Rule) *Registry {
	return &Registry{rules: rules}
}

// NewDefaultRegistry creates a registry with the built-in rules
func NewDefaultRegistry() *Registry {
	return NewRegistry(DefaultRules())
}

// Rules returns the rules in priority order
func (r *Registry) Rules() []Rule {
	return r.rules
}

// Rule returns the rule for a category
func (r *Registry) Rule(category Category) (Rule, bool) {
	for _, rule := range r.rules {
		if rule.Category == category {
			return rule, true
		}
	}
	return Rule{}, false
}

// MatchAliases returns the categories whose aliases occur in the column name
func (r *Registry) MatchAliases(columnName string) map[Category]bool {
	lower := strings.ToLower(columnName)
	matched := make(map[Category]bool)
	for _, rule := range r.rules {
		for _, alias := range rule.Aliases {
			if strings.Contains(lower, alias) {
				matched[rule.Category] = true
				break
			}
		}
	}
	return matched
}
