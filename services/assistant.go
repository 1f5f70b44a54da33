package services

import (
	"strings"

	"github.com/vnkhanh/companion-tutor-backend/models"
)

const (
	MetadataSessionKey = "sessionId"
	defaultVoiceID     = "oWAxZDx7w5VEj9dCyTzz"
)

// giọng ElevenLabs theo voice × style
var voiceIDs = map[string]map[string]string{
	"male": {
		"casual": "pNInz6obpgDQGcFmaJgB",
		"formal": "VR6AewLTigWG4xSOukaG",
	},
	"female": {
		"casual": "oWAxZDx7w5VEj9dCyTzz",
		"formal": "21m00Tcm4TlvDq8ikWAM",
	},
}

const tutorPrompt = `You are a highly knowledgable tutor teaching a real-time voice session with a student. Your goal is to teach the student about the topic and subject.

Tutor Guidelines:
Stick to the given topic - {{topic}} and subject - {{subject}} and teach the student about it.
Keep the conversation flowing smoothly while maintaining control.
From time to time make sure that the student is following you and understands you.
Break down the topic into smaller parts and teach the student one part at a time.
Keep your style of conversation {{style}}.
Keep your responses short, like in a real voice conversation.
Do not include any special characters in your responses - this is a voice conversation.`

type AssistantTranscriber struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

type AssistantVoice struct {
	Provider        string  `json:"provider"`
	VoiceID         string  `json:"voiceId"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarityBoost"`
	Speed           float64 `json:"speed"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"useSpeakerBoost"`
}

type AssistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AssistantModel struct {
	Provider string             `json:"provider"`
	Model    string             `json:"model"`
	Messages []AssistantMessage `json:"messages"`
}

// AssistantConfig là payload client gửi cho Vapi khi bắt đầu cuộc gọi
type AssistantConfig struct {
	Name               string               `json:"name"`
	FirstMessage       string               `json:"firstMessage"`
	Transcriber        AssistantTranscriber `json:"transcriber"`
	Voice              AssistantVoice       `json:"voice"`
	Model              AssistantModel       `json:"model"`
	MaxDurationSeconds int                  `json:"maxDurationSeconds,omitempty"`
	Metadata           map[string]string    `json:"metadata,omitempty"`
	VariableValues     map[string]string    `json:"variableValues"`
}

func VoiceID(voice, style string) string {
	if styles, ok := voiceIDs[strings.ToLower(voice)]; ok {
		if id, ok := styles[strings.ToLower(style)]; ok {
			return id
		}
	}
	return defaultVoiceID
}

// BuildAssistantConfig dựng cấu hình assistant; sessionID rỗng thì không gắn metadata
func BuildAssistantConfig(c *models.Companion, sessionID string) AssistantConfig {
	vars := map[string]string{
		"topic":   c.Topic,
		"subject": c.Subject,
		"style":   c.Style,
	}
	prompt := tutorPrompt
	for k, v := range vars {
		prompt = strings.ReplaceAll(prompt, "{{"+k+"}}", v)
	}
	if c.HasPDF && c.PDFContent != nil && *c.PDFContent != "" {
		prompt += "\n\nUse the following reference material from the student's document when teaching. Stay close to it:\n" + *c.PDFContent
	}

	language := c.Language
	if language == "" {
		language = "en"
	}

	cfg := AssistantConfig{
		Name:         "Companion",
		FirstMessage: "Hello, let's start the session. Today we'll be talking about " + c.Topic + ".",
		Transcriber: AssistantTranscriber{
			Provider: "deepgram",
			Model:    "nova-3",
			Language: language,
		},
		Voice: AssistantVoice{
			Provider:        "11labs",
			VoiceID:         VoiceID(c.Voice, c.Style),
			Stability:       0.4,
			SimilarityBoost: 0.8,
			Speed:           0.9,
			Style:           0.5,
			UseSpeakerBoost: true,
		},
		Model: AssistantModel{
			Provider: "openai",
			Model:    "gpt-4",
			Messages: []AssistantMessage{{Role: "system", Content: prompt}},
		},
		MaxDurationSeconds: c.Duration * 60,
		VariableValues:     vars,
	}
	if sessionID != "" {
		cfg.Metadata = map[string]string{MetadataSessionKey: sessionID}
	}
	return cfg
}
