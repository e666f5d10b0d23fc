package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"agrochat/internal/domain"
	"agrochat/internal/llm"
)

// AssistantService genera respuestas del asistente agrícola. El contenido de
// los prompts es deliberadamente mínimo: el LLM es un colaborador externo con
// un contrato simple (mensaje + contexto → respuesta).
type AssistantService struct {
	logger *zap.Logger
	client llm.Client
}

var ErrAssistantInvalidInput = errors.New("assistant invalid input")

func NewAssistantService(logger *zap.Logger, client llm.Client) *AssistantService {
	return &AssistantService{
		logger: logger,
		client: client,
	}
}

// HistoryEntry es un turno previo de la conversación incluido en el prompt.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WeatherContext es el snapshot climático asociado a la consulta.
type WeatherContext struct {
	Location        string   `json:"location"`
	Date            string   `json:"date"`
	TempHigh        float64  `json:"tempHigh"`
	TempLow         float64  `json:"tempLow"`
	Humidity        float64  `json:"humidity"`
	WindSpeed       float64  `json:"windSpeed"`
	Condition       string   `json:"condition"`
	Recommendations []string `json:"recommendations"`
}

// DiagnosisContext es el resultado de diagnóstico asociado a la consulta.
type DiagnosisContext struct {
	CropType        string   `json:"cropType"`
	DiseaseName     string   `json:"diseaseName"`
	Confidence      float64  `json:"confidence"`
	Symptoms        []string `json:"symptoms"`
	Recommendations []string `json:"recommendations"`
	Location        string   `json:"location"`
	Date            string   `json:"date"`
}

// WeatherReply responde una consulta del chat de clima.
func (s *AssistantService) WeatherReply(ctx context.Context, message string, wc *WeatherContext, history []HistoryEntry) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrAssistantInvalidInput
	}

	var b strings.Builder
	b.WriteString("Eres un asistente agrícola. Responde en español, de forma breve y práctica, la consulta de un agricultor sobre clima y manejo del campo.\n")
	if wc != nil {
		fmt.Fprintf(&b, "Contexto climático: %s, %s, %.0f-%.0f°C, humedad %.0f%%, viento %.0f km/h, condición: %s.\n",
			wc.Location, wc.Date, wc.TempLow, wc.TempHigh, wc.Humidity, wc.WindSpeed, wc.Condition)
		writeList(&b, "Recomendaciones previas", wc.Recommendations)
	}
	writeHistory(&b, history)
	fmt.Fprintf(&b, "Consulta: %s\n", message)

	return s.generate(ctx, domain.ChatTypeWeather, b.String())
}

// DiagnosisReply responde una consulta del chat de diagnóstico.
func (s *AssistantService) DiagnosisReply(ctx context.Context, message string, dc *DiagnosisContext, history []HistoryEntry) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrAssistantInvalidInput
	}

	var b strings.Builder
	b.WriteString("Eres un asistente agrícola. Responde en español, de forma breve y práctica, la consulta de un agricultor sobre el diagnóstico de su cultivo.\n")
	if dc != nil {
		fmt.Fprintf(&b, "Diagnóstico: %s en %s (confianza %.0f%%), %s, %s.\n",
			dc.DiseaseName, dc.CropType, dc.Confidence, dc.Location, dc.Date)
		writeList(&b, "Síntomas", dc.Symptoms)
		writeList(&b, "Recomendaciones", dc.Recommendations)
	}
	writeHistory(&b, history)
	fmt.Fprintf(&b, "Consulta: %s\n", message)

	return s.generate(ctx, domain.ChatTypeDiagnosis, b.String())
}

func (s *AssistantService) generate(ctx context.Context, chatType, prompt string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("assistant service not configured")
	}
	reply, err := s.client.Generate(ctx, prompt)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("assistant generate failed", zap.Error(err), zap.String("chat_type", chatType))
		}
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func writeHistory(b *strings.Builder, history []HistoryEntry) {
	if len(history) == 0 {
		return
	}
	b.WriteString("Historial:\n")
	for _, h := range history {
		fmt.Fprintf(b, "%s: %s\n", h.Role, h.Content)
	}
}
