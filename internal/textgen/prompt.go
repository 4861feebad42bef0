package textgen

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxHistoryMessages bounds how much of the chat transcript rides along in
// the prompt.
const maxHistoryMessages = 6

// ChatMessage is one turn of the candidate/patient transcript. Sender "ai"
// is the virtual patient; anything else is the candidate.
type ChatMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// stationScript is the slice of a station document the virtual patient is
// grounded on: the clinical context, the actor's verbal script and the
// scoring checklist.
type stationScript struct {
	InformacoesEssenciais struct {
		Titulo          string `json:"titulo"`
		ContextoClinico string `json:"contextoClinico"`
	} `json:"informacoesEssenciais"`
	MateriaisDisponiveis struct {
		InformacoesVerbaisSimulado []scriptItem `json:"informacoesVerbaisSimulado"`
	} `json:"materiaisDisponiveis"`
	PadraoEsperadoProcedimento struct {
		ItensAvaliacao []struct {
			DescricaoItem string `json:"descricaoItem"`
		} `json:"itensAvaliacao"`
	} `json:"padraoEsperadoProcedimento"`
}

type scriptItem struct {
	ContextoOuPerguntaChave string `json:"contextoOuPerguntaChave"`
	Informacao              string `json:"informacao"`
}

// BuildPatientPrompt composes the virtual-patient prompt from the station
// document, the recent transcript and the candidate's current question.
// Unknown document fields are ignored; an empty document still yields a
// usable prompt with the behavioral rules.
func BuildPatientPrompt(station json.RawMessage, history []ChatMessage, userMessage string) string {
	var doc stationScript
	if len(station) > 0 {
		// A malformed document degrades to the ungrounded rules rather
		// than failing the chat.
		_ = json.Unmarshal(station, &doc)
	}

	var b strings.Builder
	b.WriteString("Você é um paciente virtual em uma simulação médica.\n\n")

	if doc.InformacoesEssenciais.Titulo != "" {
		b.WriteString("CONTEXTO MÉDICO:\n")
		fmt.Fprintf(&b, "- Estação: %s\n", doc.InformacoesEssenciais.Titulo)
		if doc.InformacoesEssenciais.ContextoClinico != "" {
			fmt.Fprintf(&b, "- Contexto: %s\n", doc.InformacoesEssenciais.ContextoClinico)
		}
		b.WriteString("\n")
	}

	script := doc.MateriaisDisponiveis.InformacoesVerbaisSimulado
	if len(script) > 0 {
		b.WriteString("SCRIPT DO PACIENTE (use como base para suas respostas):\n")
		for _, item := range script {
			if item.ContextoOuPerguntaChave != "" && item.Informacao != "" {
				fmt.Fprintf(&b, "- %s: %s\n", item.ContextoOuPerguntaChave, item.Informacao)
			}
		}
		b.WriteString("\n")
	}

	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	if len(history) > 0 {
		b.WriteString("CONVERSA ANTERIOR:\n")
		for _, msg := range history {
			role := "Médico"
			if msg.Sender == "ai" {
				role = "Paciente"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, msg.Message)
		}
		b.WriteString("\n")
	}

	b.WriteString("INSTRUÇÕES:\n")
	b.WriteString("1. Responda SEMPRE como o paciente, mantendo consistência com o script\n")
	b.WriteString("2. Use linguagem natural e coloquial (não muito técnica)\n")
	b.WriteString("3. Seja cooperativo mas realista - um paciente real\n")
	b.WriteString("4. Mantenha respostas concisas (máximo 2-3 frases)\n")
	b.WriteString("5. Se não souber algo específico, diga \"Não sei\" ou \"Não lembro\"\n")
	b.WriteString("6. Se o candidato perguntar algo que não está no seu script, responda: \"Não consta no script\"\n")
	b.WriteString("7. Se o candidato solicitar algo genérico como \"exames\", peça que seja mais específico\n\n")

	pep := doc.PadraoEsperadoProcedimento.ItensAvaliacao
	if len(pep) > 0 {
		b.WriteString("ITENS DE AVALIAÇÃO (PEP) - Para referência sobre especificidade necessária:\n")
		for i, item := range pep {
			if item.DescricaoItem != "" {
				fmt.Fprintf(&b, "- Item %d: %s\n", i+1, item.DescricaoItem)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "PERGUNTA ATUAL DO MÉDICO: %q\n\n", userMessage)
	b.WriteString("Responda como o paciente:")
	return b.String()
}
