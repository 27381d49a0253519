package gemini

import "time"

// Config holds configuration for the Gemini client.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
	// EnableWebSearch turns on Google Search grounding so the model can check
	// historical/news facts the trusted-source APIs cannot supply.
	EnableWebSearch bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:          apiKey,
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           "gemini-2.5-flash",
		Timeout:         2 * time.Minute,
		MaxOutputTokens: 8192,
		EnableWebSearch: true,
	}
}

// Content represents content in a request.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part represents one part of the content: text, inline media, or a
// reference to a staged file.
type Part struct {
	Text       string    `json:"text,omitempty"`
	InlineData *Blob     `json:"inlineData,omitempty"`
	FileData   *FileData `json:"fileData,omitempty"`
}

// Blob carries base64-encoded inline media.
type Blob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FileData references a file previously staged via the Files API.
type FileData struct {
	MIMEType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

// GenerationConfig represents generation parameters.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

// Tool enables a built-in model tool.
type Tool struct {
	GoogleSearch *GoogleSearch `json:"googleSearch,omitempty"`
}

// GoogleSearch enables Google Search grounding.
type GoogleSearch struct{}

// Request represents the generateContent request body.
type Request struct {
	Contents          []Content        `json:"contents"`
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	GenerationConfig  GenerationConfig `json:"generationConfig,omitempty"`
	Tools             []Tool           `json:"tools,omitempty"`
}

// Response represents the generateContent response.
type Response struct {
	Candidates []struct {
		Content struct {
			Parts []Part `json:"parts"`
			Role  string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// File processing states reported by the Files API.
const (
	FileStateProcessing = "PROCESSING"
	FileStateActive     = "ACTIVE"
	FileStateFailed     = "FAILED"
)

// File is the metadata the Files API returns for a staged file.
type File struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	State    string `json:"state"`
}

type uploadResponse struct {
	File File `json:"file"`
}
