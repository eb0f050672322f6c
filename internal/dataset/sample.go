package dataset

import (
	"fmt"
	"math/rand"
)

var (
	sampleFirstNames = []string{
		"Ana", "Bruno", "Carla", "Daniel", "Eduarda", "Felipe", "Gabriela",
		"Henrique", "Isabela", "João", "Karina", "Lucas", "Mariana", "Nelson",
		"Olívia", "Paulo", "Rafaela", "Sérgio", "Tatiana", "Vinícius",
	}
	sampleLastNames = []string{
		"Almeida", "Barbosa", "Cardoso", "Dias", "Ferreira", "Gomes", "Lima",
		"Martins", "Nascimento", "Oliveira", "Pereira", "Ribeiro", "Santos",
		"Silva", "Souza", "Teixeira",
	}
	sampleStreets = []string{
		"Rua das Flores", "Avenida Paulista", "Rua XV de Novembro",
		"Avenida Brasil", "Rua da Praia", "Travessa do Comércio",
		"Rua Sete de Setembro", "Avenida Getúlio Vargas",
	}
	sampleCities = []string{
		"São Paulo", "Rio de Janeiro", "Belo Horizonte", "Curitiba",
		"Porto Alegre", "Recife", "Salvador", "Fortaleza", "Teresina",
	}
	sampleJobs = []string{
		"Analista de Dados", "Engenheiro de Software", "Gerente de Projetos",
		"Assistente Administrativo", "Coordenador Comercial", "Contador",
		"Designer", "Técnico de Suporte",
	}
	sampleDepartments = []string{"TI", "RH", "Financeiro", "Comercial", "Operações"}
	sampleDomains     = []string{"example.com.br", "mail.com", "empresa.net.br", "correio.com"}
)

// GenerateSample builds a synthetic employee dataset with realistic Brazilian
// PII for testing scans and anonymization runs. The seed makes output
// reproducible.
func GenerateSample(rows int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))

	ids := make([]Value, rows)
	names := make([]Value, rows)
	cpfs := make([]Value, rows)
	emails := make([]Value, rows)
	phones := make([]Value, rows)
	addresses := make([]Value, rows)
	births := make([]Value, rows)
	salaries := make([]Value, rows)
	jobs := make([]Value, rows)
	departments := make([]Value, rows)

	for i := 0; i < rows; i++ {
		first := sampleFirstNames[rng.Intn(len(sampleFirstNames))]
		last := sampleLastNames[rng.Intn(len(sampleLastNames))]

		ids[i] = Number(float64(i + 1))
		names[i] = String(fmt.Sprintf("%s %s", first, last))
		cpfs[i] = String(randomCPF(rng))
		emails[i] = String(fmt.Sprintf("%s.%s%d@%s",
			lowerASCII(first), lowerASCII(last), rng.Intn(100),
			sampleDomains[rng.Intn(len(sampleDomains))]))
		phones[i] = String(fmt.Sprintf("(%02d) 9%04d-%04d",
			11+rng.Intn(88), rng.Intn(10000), rng.Intn(10000)))
		addresses[i] = String(fmt.Sprintf("%s, %d, %s",
			sampleStreets[rng.Intn(len(sampleStreets))], 1+rng.Intn(2000),
			sampleCities[rng.Intn(len(sampleCities))]))
		births[i] = String(fmt.Sprintf("%02d/%02d/%d",
			1+rng.Intn(28), 1+rng.Intn(12), 1955+rng.Intn(50)))
		salaries[i] = Number(float64(int((1500+rng.Float64()*18500)*100)) / 100)
		jobs[i] = String(sampleJobs[rng.Intn(len(sampleJobs))])
		departments[i] = String(sampleDepartments[rng.Intn(len(sampleDepartments))])
	}

	ds := New("sample_data")
	ds.AddColumn("id", ids)
	ds.AddColumn("nome_completo", names)
	ds.AddColumn("cpf", cpfs)
	ds.AddColumn("email", emails)
	ds.AddColumn("telefone", phones)
	ds.AddColumn("endereco", addresses)
	ds.AddColumn("data_nascimento", births)
	ds.AddColumn("salario", salaries)
	ds.AddColumn("cargo", jobs)
	ds.AddColumn("departamento", departments)
	return ds
}

// randomCPF generates a CPF with valid check digits, formatted 000.000.000-00
func randomCPF(rng *rand.Rand) string {
	digits := make([]int, 11)
	for i := 0; i < 9; i++ {
		digits[i] = rng.Intn(10)
	}

	sum := 0
	for i := 0; i < 9; i++ {
		sum += digits[i] * (10 - i)
	}
	rest := sum % 11
	if rest < 2 {
		digits[9] = 0
	} else {
		digits[9] = 11 - rest
	}

	sum = 0
	for i := 0; i < 10; i++ {
		sum += digits[i] * (11 - i)
	}
	rest = sum % 11
	if rest < 2 {
		digits[10] = 0
	} else {
		digits[10] = 11 - rest
	}

	return fmt.Sprintf("%d%d%d.%d%d%d.%d%d%d-%d%d",
		digits[0], digits[1], digits[2], digits[3], digits[4], digits[5],
		digits[6], digits[7], digits[8], digits[9], digits[10])
}

// lowerASCII lowercases and strips accents common in the name pools
func lowerASCII(s string) string {
	replacements := map[rune]rune{
		'á': 'a', 'â': 'a', 'ã': 'a', 'é': 'e', 'ê': 'e', 'í': 'i',
		'ó': 'o', 'ô': 'o', 'õ': 'o', 'ú': 'u', 'ç': 'c',
		'Á': 'a', 'Â': 'a', 'Ã': 'a', 'É': 'e', 'Ê': 'e', 'Í': 'i',
		'Ó': 'o', 'Ô': 'o', 'Õ': 'o', 'Ú': 'u', 'Ç': 'c',
	}

	out := make([]rune, 0, len(s))
	for _, r := range s {
		if repl, ok := replacements[r]; ok {
			r = repl
		}
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}
