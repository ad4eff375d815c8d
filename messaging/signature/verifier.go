package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// Encoding es el formato del digest en el header de firma
type Encoding int

const (
	// EncodingHex: digest hexadecimal, usado por Meta (X-Hub-Signature-256)
	EncodingHex Encoding = iota
	// EncodingBase64: digest base64, usado por Genesys (X-Hub-Signature-256)
	EncodingBase64
)

const signaturePrefix = "sha256="

// Verify valida una firma HMAC-SHA256 calculada sobre los bytes crudos del
// cuerpo. La comparación es en tiempo constante. Retorna false ante header
// vacío, secreto vacío o digest malformado, nunca un error.
func Verify(payload []byte, header, secret string, encoding Encoding) bool {
	if header == "" || secret == "" {
		return false
	}

	digest := strings.TrimPrefix(header, signaturePrefix)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := mac.Sum(nil)

	var provided []byte
	var err error
	switch encoding {
	case EncodingBase64:
		provided, err = base64.StdEncoding.DecodeString(digest)
	default:
		provided, err = hex.DecodeString(digest)
	}
	if err != nil {
		return false
	}

	return hmac.Equal(provided, expected)
}

// ResolveSecret selecciona el secreto por tenant con fallback al global.
// ok=false cuando no hay ningún secreto configurado: el caller debe rechazar
// el webhook, nunca saltarse la verificación.
func ResolveSecret(tenantSecret, globalSecret string) (string, bool) {
	if tenantSecret != "" {
		return tenantSecret, true
	}
	if globalSecret != "" {
		return globalSecret, true
	}
	return "", false
}
