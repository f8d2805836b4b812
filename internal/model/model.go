package model

import "time"

// CachedAccount represents an identity-provider account stored in DynamoDB.
// The refresh token is always encrypted at rest.
type CachedAccount struct {
	HomeAccountID         string    `json:"home_account_id" dynamodbav:"home_account_id"`
	EncryptedRefreshToken string    `json:"encrypted_refresh_token" dynamodbav:"encrypted_refresh_token"`
	Username              string    `json:"username" dynamodbav:"username"`
	Name                  string    `json:"name" dynamodbav:"name"`
	UpdatedAt             time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// User is the profile shape returned to the client.
type User struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

// Part is one piece of message content exchanged with the completion
// service. Exactly one of Text or InlineData is set.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData is base64 file content with its MIME type.
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role  string `json:"role"` // "user" or "model"
	Parts []Part `json:"parts"`
}

// ChatEntry is a named conversation within a container.
type ChatEntry struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	History []ChatMessage `json:"history"`
}

// FunctionParameter describes one input of a templated AI action.
type FunctionParameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "string", "number" or "textarea"
	Description string `json:"description"`
}

// AppFunction is a workspace-scoped templated AI action.
type AppFunction struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	Icon           string              `json:"icon"`
	Parameters     []FunctionParameter `json:"parameters"`
	PromptTemplate string              `json:"promptTemplate"`
	Enabled        bool                `json:"enabled"`
}

// KnowledgeFile is metadata for an uploaded file. Content is stored
// out-of-band keyed by ID and must never travel with the metadata.
type KnowledgeFile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	UploadDate string `json:"uploadDate"`
}

// ChatTheme holds the per-workspace color scheme.
type ChatTheme struct {
	UserBg             string `json:"userBg"`
	UserText           string `json:"userText"`
	BotBg              string `json:"botBg"`
	BotText            string `json:"botText"`
	BgGradientStart    string `json:"bgGradientStart"`
	BgGradientEnd      string `json:"bgGradientEnd"`
	SidebarBg          string `json:"sidebarBg"`
	SidebarText        string `json:"sidebarText"`
	SidebarHighlightBg string `json:"sidebarHighlightBg"`
}

// Integrations flags which external services a deployment exposes.
type Integrations struct {
	SharePoint bool `json:"sharepoint"`
	Brevo      bool `json:"brevo"`
	HubSpot    bool `json:"hubspot"`
	DocuSign   bool `json:"docusign"`
	Outlook    bool `json:"outlook"`
}

// Branding is the global, singleton customization entity.
type Branding struct {
	LoginTitle           string       `json:"loginTitle"`
	LoginSubtitle        string       `json:"loginSubtitle"`
	HubTitle             string       `json:"hubTitle"`
	HubSubtitle          string       `json:"hubSubtitle"`
	HubHeaderTitle       string       `json:"hubHeaderTitle"`
	AppLogo              string       `json:"appLogo,omitempty"`
	EnableGoogleLogin    bool         `json:"enableGoogleLogin"`
	EnableMicrosoftLogin bool         `json:"enableMicrosoftLogin"`
	EnableCookieBanner   bool         `json:"enableCookieBanner"`
	PrivacyPolicyURL     string       `json:"privacyPolicyUrl"`
	Integrations         Integrations `json:"integrations"`
}

// AIModel is one entry of the global model registry.
type AIModel struct {
	ID   string `json:"id"`
	Icon string `json:"icon"`
	API  string `json:"api"` // "google", "openai" or "anthropic"
}

// Container is a workspace: branding, model/persona selection, functions,
// chats and the knowledge-base metadata list.
type Container struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	Description           string          `json:"description"`
	Icon                  string          `json:"icon"`
	CardImageURL          string          `json:"cardImageUrl"`
	QuickQuestions        []string        `json:"quickQuestions"`
	AvailableModels       []string        `json:"availableModels"`
	AvailablePersonas     []string        `json:"availablePersonas"`
	SelectedModel         string          `json:"selectedModel"`
	SelectedPersona       string          `json:"selectedPersona"`
	Functions             []AppFunction   `json:"functions"`
	EnabledIntegrations   []string        `json:"enabledIntegrations"`
	AccessControl         []string        `json:"accessControl"`
	Chats                 []ChatEntry     `json:"chats"`
	ActiveChatID          *string         `json:"activeChatId"`
	KnowledgeBase         []KnowledgeFile `json:"knowledgeBase"`
	Theme                 ChatTheme       `json:"theme"`
	IsKnowledgeBasePublic bool            `json:"isKnowledgeBasePublic"`
}
