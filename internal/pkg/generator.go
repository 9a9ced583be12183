package pkg

import (
	"crypto/sha1" //nolint: gosec // required by RFC 6455
	"encoding/base64"

	"github.com/google/uuid"
)

const webSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// GenerateNewSessionID returns a random session identifier.
func GenerateNewSessionID() string {
	return uuid.NewString()
}

// GenerateAcceptKey computes Sec-WebSocket-Accept for a client key.
func GenerateAcceptKey(key string) string {
	hash := sha1.New() //nolint: gosec // required by RFC 6455
	hash.Write([]byte(key + webSocketGUID))

	return base64.StdEncoding.EncodeToString(hash.Sum(nil))
}
