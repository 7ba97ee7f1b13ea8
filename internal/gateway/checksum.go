package gateway

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const checksumSeparator = "###"

// Credentials содержит секреты мерчанта для подписи запросов и проверки уведомлений.
type Credentials struct {
	MerchantID string
	SaltKey    string
	SaltIndex  string
}

// Checksum вычисляет подпись hex(sha256(parts... + saltKey)) + "###" + saltIndex.
func (c Credentials) Checksum(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	h.Write([]byte(c.SaltKey))
	return hex.EncodeToString(h.Sum(nil)) + checksumSeparator + c.SaltIndex
}

// SignRequest подписывает base64-тело запроса к шлюзу для указанного пути API.
func (c Credentials) SignRequest(base64Payload, apiPath string) string {
	return c.Checksum(base64Payload, apiPath)
}

// Verifier проверяет подпись X-VERIFY входящих уведомлений шлюза.
type Verifier struct {
	creds Credentials
}

// NewVerifier создаёт Verifier с указанными секретами.
func NewVerifier(creds Credentials) *Verifier {
	return &Verifier{creds: creds}
}

// Verify сообщает, подписан ли base64Response секретом мерчанта.
// Любые некорректные входные данные дают false.
func (v *Verifier) Verify(base64Response, signature string) bool {
	if v == nil || v.creds.SaltKey == "" || v.creds.SaltIndex == "" {
		return false
	}
	if base64Response == "" || signature == "" {
		return false
	}

	expected := v.creds.Checksum(base64Response)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
