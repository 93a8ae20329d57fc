package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// Service wraps a Generator with the task-level prompts. Every task returns
// a usable value even when generation fails; callers never see an AI error.
type Service struct {
	gen Generator
}

func NewService(gen Generator) *Service {
	if gen == nil {
		gen = Disabled{}
	}
	return &Service{gen: gen}
}

/* ============================= Case analysis ============================ */

type CaseAnalysis struct {
	Area       string `json:"area"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Complexity string `json:"complexity"`
}

var caseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"area":       {Type: genai.TypeString},
		"title":      {Type: genai.TypeString},
		"summary":    {Type: genai.TypeString},
		"complexity": {Type: genai.TypeString, Enum: []string{"Baixa", "Média", "Alta"}},
	},
	Required: []string{"area", "title", "summary", "complexity"},
}

// AnalyzeCase classifies a free-text case description. On failure the case
// still gets a generic classification so publication is never blocked.
func (s *Service) AnalyzeCase(ctx context.Context, description string) CaseAnalysis {
	prompt := fmt.Sprintf(`Você é um advogado triador. Analise o relato abaixo e responda em JSON:
- area: área do direito (ex.: "Direito Trabalhista", "Direito do Consumidor")
- title: título curto e profissional para o caso (máx. 60 caracteres)
- summary: resumo técnico em até 2 frases, sem dados pessoais
- complexity: "Baixa", "Média" ou "Alta"

Relato: %q`, description)

	var out CaseAnalysis
	if err := s.gen.GenerateJSON(ctx, prompt, caseSchema, &out); err != nil || out.Area == "" {
		return CaseAnalysis{
			Area:       "Direito Geral",
			Title:      "Nova Demanda Jurídica",
			Summary:    truncate(description, 100),
			Complexity: "Média",
		}
	}
	switch out.Complexity {
	case "Baixa", "Média", "Alta":
	default:
		out.Complexity = "Média"
	}
	return out
}

/* =============================== Auto-tag =============================== */

type DocTags struct {
	Type string   `json:"type"`
	Tags []string `json:"tags"`
}

var docTagSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"type": {Type: genai.TypeString},
		"tags": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
	Required: []string{"type", "tags"},
}

// AutoTag infers a document category and tags from its file name.
func (s *Service) AutoTag(ctx context.Context, fileName string) DocTags {
	prompt := fmt.Sprintf(`Classifique o documento jurídico pelo nome do arquivo e responda em JSON:
- type: categoria ("Contrato", "Procuração", "Petição", "Prova", "Outros")
- tags: até 3 etiquetas curtas em português

Arquivo: %q`, fileName)

	var out DocTags
	if err := s.gen.GenerateJSON(ctx, prompt, docTagSchema, &out); err != nil || out.Type == "" {
		return DocTags{Type: "Outros", Tags: []string{"Documento"}}
	}
	if len(out.Tags) == 0 {
		out.Tags = []string{"Documento"}
	}
	return out
}

/* ============================= Jurisprudence ============================ */

type JurisprudenceHit struct {
	Court   string `json:"court"`
	Summary string `json:"summary"`
	Outcome string `json:"outcome"`
	// Relevance is a 0-100 score.
	Relevance int `json:"relevance"`
}

var jurisSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"court":     {Type: genai.TypeString},
			"summary":   {Type: genai.TypeString},
			"outcome":   {Type: genai.TypeString},
			"relevance": {Type: genai.TypeInteger},
		},
		Required: []string{"court", "summary", "outcome", "relevance"},
	},
}

// SearchJurisprudence returns synthesized precedent summaries for a query.
// An empty slice means the search produced nothing, not an error.
func (s *Service) SearchJurisprudence(ctx context.Context, query string) []JurisprudenceHit {
	prompt := fmt.Sprintf(`Liste 3 precedentes brasileiros representativos para a consulta abaixo.
Responda em JSON array com: court (tribunal e número fictício do processo),
summary (ementa resumida), outcome ("Favorável", "Desfavorável" ou "Parcial"),
relevance (pontuação de relevância de 0 a 100).

Consulta: %q`, query)

	var out []JurisprudenceHit
	if err := s.gen.GenerateJSON(ctx, prompt, jurisSchema, &out); err != nil {
		return []JurisprudenceHit{}
	}
	return out
}

/* ================================ Drafts ================================ */

type DraftRequest struct {
	Type          string
	ClientName    string
	OpposingParty string
	Facts         string
	Tone          string
}

// Draft produces a full legal document body in plain text.
func (s *Service) Draft(ctx context.Context, in DraftRequest) string {
	tone := in.Tone
	if tone == "" {
		tone = "Formal"
	}
	prompt := fmt.Sprintf(`Redija uma minuta jurídica completa em português.
Tipo de peça: %s
Cliente: %s
Parte contrária: %s
Tom: %s
Fatos: %s

Use a estrutura padrão da peça (endereçamento, qualificação, fatos, direito, pedidos) e não invente dados não fornecidos.`,
		in.Type, in.ClientName, in.OpposingParty, tone, in.Facts)

	text, err := s.gen.GenerateText(ctx, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		return "Erro ao gerar minuta. Tente novamente em instantes."
	}
	return text
}

/* ============================== CRM risk ================================ */

type RiskAssessment struct {
	RiskScore             string `json:"risk_score"`
	ConversionProbability int    `json:"conversion_probability"`
}

var riskSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"risk_score":             {Type: genai.TypeString, Enum: []string{"Baixo", "Médio", "Alto"}},
		"conversion_probability": {Type: genai.TypeInteger},
	},
	Required: []string{"risk_score", "conversion_probability"},
}

// AssessRisk estimates churn risk and conversion odds for a CRM contact.
func (s *Service) AssessRisk(ctx context.Context, name, status, notes string) RiskAssessment {
	prompt := fmt.Sprintf(`Avalie o lead de um escritório de advocacia e responda em JSON:
- risk_score: "Baixo", "Médio" ou "Alto" (risco de perder o cliente)
- conversion_probability: inteiro de 0 a 100

Nome: %s
Status atual: %s
Anotações: %s`, name, status, notes)

	var out RiskAssessment
	if err := s.gen.GenerateJSON(ctx, prompt, riskSchema, &out); err != nil || out.RiskScore == "" {
		return RiskAssessment{RiskScore: "Médio", ConversionProbability: 50}
	}
	if out.ConversionProbability < 0 {
		out.ConversionProbability = 0
	}
	if out.ConversionProbability > 100 {
		out.ConversionProbability = 100
	}
	return out
}

/* =============================== Intake ================================= */

type IntakeDiagnosis struct {
	Area            string `json:"area"`
	Urgency         string `json:"urgency"`
	SuggestedAction string `json:"suggested_action"`
}

var intakeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"area":             {Type: genai.TypeString},
		"urgency":          {Type: genai.TypeString, Enum: []string{"Baixa", "Média", "Alta"}},
		"suggested_action": {Type: genai.TypeString},
	},
	Required: []string{"area", "urgency", "suggested_action"},
}

// DiagnoseIntake turns guided intake answers into a triage suggestion.
func (s *Service) DiagnoseIntake(ctx context.Context, answers map[string]string) IntakeDiagnosis {
	pairs := make([]string, 0, len(answers))
	for q, a := range answers {
		pairs = append(pairs, fmt.Sprintf("%s: %s", q, a))
	}
	prompt := fmt.Sprintf(`Com base nas respostas do questionário de triagem abaixo, responda em JSON:
- area: área do direito mais provável
- urgency: "Baixa", "Média" ou "Alta"
- suggested_action: próximo passo recomendado em uma frase

Respostas:
%s`, strings.Join(pairs, "\n"))

	var out IntakeDiagnosis
	if err := s.gen.GenerateJSON(ctx, prompt, intakeSchema, &out); err != nil {
		return IntakeDiagnosis{}
	}
	return out
}

/* ============================= Calculators ============================== */

type CalcLine struct {
	Label       string  `json:"label"`
	Value       float64 `json:"value"`
	Description string  `json:"description"`
}

type CalcResult struct {
	Total   float64    `json:"total"`
	Summary string     `json:"summary"`
	Details []CalcLine `json:"details"`
}

var calcSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"total":   {Type: genai.TypeNumber},
		"summary": {Type: genai.TypeString},
		"details": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"label":       {Type: genai.TypeString},
					"value":       {Type: genai.TypeNumber},
					"description": {Type: genai.TypeString},
				},
				Required: []string{"label", "value", "description"},
			},
		},
	},
	Required: []string{"total", "summary", "details"},
}

// Calculate runs a legal calculator (verbas rescisórias, pensão, etc.) over
// the caller's inputs and itemizes the result.
func (s *Service) Calculate(ctx context.Context, category, calcType string, inputs json.RawMessage) CalcResult {
	prompt := fmt.Sprintf(`Você é uma calculadora jurídica brasileira. Calcule com base na legislação vigente e responda em JSON:
- total: valor total em reais
- summary: explicação do cálculo em até 2 frases
- details: itens com label, value e description

Categoria: %s
Tipo de cálculo: %s
Dados informados: %s`, category, calcType, string(inputs))

	var out CalcResult
	if err := s.gen.GenerateJSON(ctx, prompt, calcSchema, &out); err != nil {
		return CalcResult{Total: 0, Summary: "Erro no cálculo IA", Details: []CalcLine{}}
	}
	if out.Details == nil {
		out.Details = []CalcLine{}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
