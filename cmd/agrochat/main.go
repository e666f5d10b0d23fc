package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"agrochat/internal/chatctl"
	"agrochat/internal/domain"
	"agrochat/internal/localcache"
)

// Cliente de terminal del asistente agrícola: conversa contra la API y
// persiste el historial con el mismo controlador que usa la app.
func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	baseURL := os.Getenv("AGROCHAT_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	accessToken := os.Getenv("AGROCHAT_TOKEN")

	logger := zap.NewExample()
	defer logger.Sync()

	cachePath := os.Getenv("AGROCHAT_CACHE")
	if cachePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal(err)
		}
		cachePath = filepath.Join(home, ".agrochat", "cache.db")
	}
	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		log.Fatal(err)
	}
	cache, err := localcache.NewSQLiteStore(cachePath, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer cache.Close()

	var client *chatctl.HistoryClient
	if accessToken != "" {
		client = chatctl.NewHistoryClient(baseURL, accessToken, nil)
		fmt.Println("Sesión autenticada: el historial se guarda en el servidor.")
	} else {
		fmt.Println("Modo invitado: el historial se guarda solo en este equipo.")
	}

	for {
		fmt.Println("===== AgroChat =====")
		fmt.Println("[1] Chat de diagnóstico")
		fmt.Println("[2] Chat de clima")
		fmt.Println("[3] Ver historial de sesiones")
		if client != nil {
			fmt.Println("[4] Reenviar mensajes pendientes al servidor")
		}
		fmt.Println("[S] Salir")
		fmt.Print("Selección: ")

		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)

		switch strings.ToUpper(choice) {
		case "1":
			runChat(ctx, reader, logger, baseURL, client, cache, domain.ChatTypeDiagnosis)
		case "2":
			runChat(ctx, reader, logger, baseURL, client, cache, domain.ChatTypeWeather)
		case "3":
			showSessions(ctx, reader, logger, client, cache)
		case "4":
			if client == nil {
				fmt.Println("Selección inválida.")
				continue
			}
			sweep(ctx, logger, client, cache)
		case "S":
			fmt.Println("Hasta luego.")
			return
		default:
			fmt.Println("Selección inválida.")
		}
	}
}

func runChat(
	ctx context.Context,
	reader *bufio.Reader,
	logger *zap.Logger,
	baseURL string,
	client *chatctl.HistoryClient,
	cache localcache.Store,
	chatType string,
) {
	ctl, err := chatctl.NewController(logger, chatType, client, cache)
	if err != nil {
		log.Fatalf("crear controlador: %v", err)
	}

	sessionID := ctl.InitializeSession("")
	fmt.Printf("Nueva sesión %s. Escribe tu consulta, o /salir para volver al menú.\n", sessionID)

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "/salir") {
			return
		}
		if strings.EqualFold(line, "/limpiar") {
			if err := ctl.ClearChat(ctx); err != nil {
				fmt.Printf("No se pudo limpiar: %v\n", err)
			}
			ctl.InitializeSession("")
			fmt.Println("Conversación reiniciada.")
			continue
		}

		history := toHistory(ctl.Messages())
		if err := ctl.AddMessage(ctx, domain.ChatMessage{Role: domain.RoleUser, Content: line}, nil); err != nil {
			fmt.Printf("No se pudo enviar: %v\n", err)
			continue
		}

		reply, err := askAssistant(ctx, baseURL, chatType, line, history)
		if err != nil {
			fmt.Printf("El asistente no respondió: %v\n", err)
			continue
		}
		fmt.Println(reply)

		if err := ctl.AddMessage(ctx, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply}, nil); err != nil {
			fmt.Printf("No se pudo guardar la respuesta: %v\n", err)
		}
	}
}

func showSessions(
	ctx context.Context,
	reader *bufio.Reader,
	logger *zap.Logger,
	client *chatctl.HistoryClient,
	cache localcache.Store,
) {
	ctl, err := chatctl.NewController(logger, domain.ChatTypeDiagnosis, client, cache)
	if err != nil {
		log.Fatalf("crear controlador: %v", err)
	}

	sessions := ctl.ListSessions(ctx)
	if len(sessions) == 0 {
		fmt.Println("No hay sesiones guardadas.")
		return
	}

	fmt.Println("Sesiones:")
	for i, s := range sessions {
		fmt.Printf("[%d] (%s) %s — %d mensajes, %s\n",
			i+1, s.ChatType, s.Title, s.MessageCount, s.LastUpdated.Format(time.RFC822))
	}
	fmt.Print("Número a borrar, o Enter para volver: ")
	choice, _ := reader.ReadString('\n')
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return
	}
	idx, err := strconv.Atoi(choice)
	if err != nil || idx < 1 || idx > len(sessions) {
		fmt.Println("Selección inválida.")
		return
	}
	target := sessions[idx-1]
	if err := ctl.DeleteSession(ctx, target.ChatType, target.ID); err != nil {
		fmt.Printf("No se pudo borrar: %v\n", err)
		return
	}
	fmt.Println("Sesión borrada.")
}

func sweep(ctx context.Context, logger *zap.Logger, client *chatctl.HistoryClient, cache localcache.Store) {
	ctl, err := chatctl.NewController(logger, domain.ChatTypeDiagnosis, client, cache)
	if err != nil {
		log.Fatalf("crear controlador: %v", err)
	}
	if err := ctl.SweepStranded(ctx); err != nil {
		fmt.Printf("Quedaron mensajes pendientes: %v\n", err)
		return
	}
	fmt.Println("Todos los mensajes pendientes fueron enviados.")
}

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func toHistory(messages []domain.ChatMessage) []historyEntry {
	out := make([]historyEntry, 0, len(messages))
	for _, m := range messages {
		out = append(out, historyEntry{Role: m.Role, Content: m.Content})
	}
	return out
}

// askAssistant consulta el endpoint de chat del asistente para el tipo dado.
func askAssistant(ctx context.Context, baseURL, chatType, message string, history []historyEntry) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"message":             message,
		"conversationHistory": history,
	})
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(baseURL, "/") + "/api/" + chatType + "-chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("assistant http error: status=%d", resp.StatusCode)
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}
