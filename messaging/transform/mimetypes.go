package transform

import "strings"

// Tipos de mensaje del Graph API de WhatsApp
const (
	WabaTypeText     = "text"
	WabaTypeImage    = "image"
	WabaTypeVideo    = "video"
	WabaTypeAudio    = "audio"
	WabaTypeSticker  = "sticker"
	WabaTypeDocument = "document"
)

// MIME types que WhatsApp acepta por tipo de mensaje
var wabaMimeTypes = map[string]string{
	// Imágenes
	"image/jpeg": WabaTypeImage,
	"image/png":  WabaTypeImage,
	"image/webp": WabaTypeSticker,

	// Video
	"video/mp4":  WabaTypeVideo,
	"video/3gpp": WabaTypeVideo,

	// Audio
	"audio/aac":  WabaTypeAudio,
	"audio/mp4":  WabaTypeAudio,
	"audio/mpeg": WabaTypeAudio,
	"audio/amr":  WabaTypeAudio,
	"audio/ogg":  WabaTypeAudio,

	// Documentos
	"application/pdf":    WabaTypeDocument,
	"application/msword": WabaTypeDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": WabaTypeDocument,
	"application/vnd.ms-excel": WabaTypeDocument,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": WabaTypeDocument,
	"application/vnd.ms-powerpoint": WabaTypeDocument,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": WabaTypeDocument,
	"text/plain": WabaTypeDocument,
	"text/csv":   WabaTypeDocument,
}

// WabaTypeFor retorna el tipo de mensaje de WhatsApp para un MIME type.
// ok=false si WhatsApp no acepta ese MIME directamente.
func WabaTypeFor(mimeType string) (string, bool) {
	// Los MIME pueden venir con parámetros: "audio/ogg; codecs=opus"
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))

	wabaType, ok := wabaMimeTypes[mimeType]
	return wabaType, ok
}

// SupportsCaption indica si el tipo de mensaje admite caption
func SupportsCaption(wabaType string) bool {
	switch wabaType {
	case WabaTypeImage, WabaTypeVideo, WabaTypeDocument:
		return true
	}
	return false
}

// GenesysMediaTypeFor mapea un MIME type al MediaType de Genesys
func GenesysMediaTypeFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "Image"
	case strings.HasPrefix(mimeType, "video/"):
		return "Video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "Audio"
	}
	return "File"
}

var mimeExtensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/gif":       "gif",
	"video/mp4":       "mp4",
	"video/3gpp":      "3gp",
	"audio/aac":       "aac",
	"audio/mp4":       "m4a",
	"audio/mpeg":      "mp3",
	"audio/amr":       "amr",
	"audio/ogg":       "ogg",
	"application/pdf": "pdf",
	"text/plain":      "txt",
}

// ExtensionFor retorna la extensión de archivo para un MIME type
func ExtensionFor(mimeType string) string {
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = mimeType[:idx]
	}
	mimeType = strings.TrimSpace(strings.ToLower(mimeType))

	if ext, ok := mimeExtensions[mimeType]; ok {
		return ext
	}
	return "bin"
}
