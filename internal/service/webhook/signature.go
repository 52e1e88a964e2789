package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// Заголовки подписи в порядке проверки
var signatureHeaders = []string{"X-Webhook-Signature", "X-Signature"}

// Sign возвращает HMAC-SHA256 тела в нижнем регистре hex
func Sign(secret string, body []byte) string {
	return hex.EncodeToString(mac(secret, body))
}

// Verify сравнивает подпись за постоянное время. Префикс "sha256=" допускается.
func Verify(secret string, body []byte, signature string) bool {
	signature = strings.TrimSpace(signature)
	signature = strings.TrimPrefix(signature, "sha256=")
	given, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil || len(given) == 0 {
		return false
	}
	return hmac.Equal(given, mac(secret, body))
}

func mac(secret string, body []byte) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return h.Sum(nil)
}

func signatureFrom(headers http.Header) string {
	for _, name := range signatureHeaders {
		if v := headers.Get(name); v != "" {
			return v
		}
	}
	return ""
}
