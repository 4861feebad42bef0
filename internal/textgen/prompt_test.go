package textgen

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var stationDoc = json.RawMessage(`{
	"informacoesEssenciais": {
		"titulo": "Dor Torácica Aguda",
		"contextoClinico": "Homem de 52 anos em unidade de pronto atendimento."
	},
	"materiaisDisponiveis": {
		"informacoesVerbaisSimulado": [
			{"contextoOuPerguntaChave": "Queixa principal", "informacao": "Dor no peito há duas horas, em aperto."},
			{"contextoOuPerguntaChave": "Antecedentes", "informacao": "Hipertenso, fuma há trinta anos."}
		]
	},
	"padraoEsperadoProcedimento": {
		"itensAvaliacao": [
			{"descricaoItem": "Solicita eletrocardiograma de doze derivações."}
		]
	}
}`)

func TestBuildPatientPromptGroundsOnStation(t *testing.T) {
	prompt := BuildPatientPrompt(stationDoc, nil, "o que o senhor está sentindo?")

	assert.Contains(t, prompt, "Estação: Dor Torácica Aguda")
	assert.Contains(t, prompt, "Contexto: Homem de 52 anos em unidade de pronto atendimento.")
	assert.Contains(t, prompt, "Queixa principal: Dor no peito há duas horas, em aperto.")
	assert.Contains(t, prompt, "Antecedentes: Hipertenso, fuma há trinta anos.")
	assert.Contains(t, prompt, "Item 1: Solicita eletrocardiograma de doze derivações.")
	assert.Contains(t, prompt, `PERGUNTA ATUAL DO MÉDICO: "o que o senhor está sentindo?"`)
}

func TestBuildPatientPromptKeepsOnlyRecentHistory(t *testing.T) {
	var history []ChatMessage
	for i := 1; i <= maxHistoryMessages+2; i++ {
		sender := "user"
		if i%2 == 0 {
			sender = "ai"
		}
		history = append(history, ChatMessage{Sender: sender, Message: fmt.Sprintf("mensagem %d", i)})
	}

	prompt := BuildPatientPrompt(stationDoc, history, "e a pressão?")

	assert.NotContains(t, prompt, "mensagem 1\n")
	assert.NotContains(t, prompt, "mensagem 2\n")
	assert.Contains(t, prompt, "Médico: mensagem 3")
	assert.Contains(t, prompt, "Paciente: mensagem 8")
}

func TestBuildPatientPromptToleratesMalformedStation(t *testing.T) {
	prompt := BuildPatientPrompt(json.RawMessage(`{"informacoesEssenciais": 42}`), nil, "sente alguma dor?")

	assert.NotContains(t, prompt, "CONTEXTO MÉDICO")
	assert.Contains(t, prompt, "INSTRUÇÕES:")
	assert.Contains(t, prompt, `PERGUNTA ATUAL DO MÉDICO: "sente alguma dor?"`)
}
