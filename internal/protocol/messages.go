// Package protocol defines the WebSocket message protocol between clients and the relay.
package protocol

import "github.com/m2tx/gemini_relay/internal/catalog"

// TypeText is the only supported inbound message discriminator.
const TypeText = "text"

// Error texts sent to clients.
const (
	MsgInvalidFormat       = "Invalid message format. Expected 'role': 'user' and 'text': 'your message'."
	MsgUnsupportedType     = "Unsupported message type."
	MsgInvalidJSON         = "Invalid JSON format."
	msgUnsupportedModel    = "Unsupported model variant. Supported models: "
	msgUnsupportedMIME     = "Unsupported response MIME type. Supported types: "
	msgInvalidGeneration   = "Invalid generation config: "
	msgChatFailed          = "Chat failed: "
	msgUnsupportedLanguage = "Unsupported language. Supported languages: "
)

// UnsupportedModelMessage enumerates the catalog's models.
func UnsupportedModelMessage(cat *catalog.Catalog) string {
	return msgUnsupportedModel + catalog.FormatList(cat.ModelIDs())
}

// UnsupportedMIMEMessage enumerates the catalog's response MIME types.
func UnsupportedMIMEMessage(cat *catalog.Catalog) string {
	return msgUnsupportedMIME + catalog.FormatList(cat.MIMETypes())
}

// UnsupportedLanguageMessage enumerates the catalog's language codes.
func UnsupportedLanguageMessage(cat *catalog.Catalog) string {
	return msgUnsupportedLanguage + catalog.FormatList(cat.LanguageCodes())
}

// InvalidGenerationMessage reports an out-of-range or mistyped generation field.
func InvalidGenerationMessage(detail string) string {
	return msgInvalidGeneration + detail
}

// ChatFailedMessage reports a failed turn.
func ChatFailedMessage(detail string) string {
	return msgChatFailed + detail
}

// Frame is one outbound message. Every processed inbound message produces
// exactly one Frame.
type Frame interface {
	isFrame()
}

// ResponseFrame carries the normalized model reply.
type ResponseFrame struct {
	Response string `json:"response"`
}

// ErrorFrame reports why a message produced no reply.
type ErrorFrame struct {
	Error string `json:"error"`
}

func (ResponseFrame) isFrame() {}
func (ErrorFrame) isFrame()    {}
