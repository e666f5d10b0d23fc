package domain

import (
	"fmt"
	"math/rand"
	"time"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix() string {
	b := make([]byte, 9)
	for i := range b {
		b[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return string(b)
}

// NewMessageID genera un id de mensaje con el formato <millis>-<sufijo>,
// compatible con los ids generados por los clientes.
func NewMessageID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), randomSuffix())
}

// NewSessionID genera un id de sesión <chatType>-<millis>-<sufijo>.
func NewSessionID(chatType string, now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", chatType, now.UnixMilli(), randomSuffix())
}
