package state

import "github.com/jun/workspacehub/internal/model"

// DefaultState builds the aggregate a fresh deployment boots with.
func DefaultState() *AppState {
	return &AppState{
		Branding:        defaultBranding(),
		AvailableModels: defaultModels(),
		Containers:      defaultContainers(),
	}
}

func defaultBranding() model.Branding {
	return model.Branding{
		LoginTitle:           "Workspace Hub",
		LoginSubtitle:        "Sign in to continue",
		HubTitle:             "Welcome",
		HubSubtitle:          "Choose a workspace to get started",
		HubHeaderTitle:       "Workspace Hub",
		EnableMicrosoftLogin: true,
		EnableCookieBanner:   true,
		Integrations: model.Integrations{
			SharePoint: true,
			Outlook:    true,
		},
	}
}

func defaultModels() []model.AIModel {
	return []model.AIModel{
		{ID: "gemini-2.5-flash", Icon: "sparkles", API: "google"},
		{ID: "gemini-2.5-pro", Icon: "sparkles", API: "google"},
		{ID: "gpt-4o", Icon: "bolt", API: "openai"},
		{ID: "claude-sonnet-4-20250514", Icon: "book", API: "anthropic"},
	}
}

func defaultContainers() []model.Container {
	return []model.Container{
		{
			ID:          "container-general",
			Name:        "General Assistant",
			Description: "Company-wide questions and everyday tasks",
			Icon:        "chat",
			QuickQuestions: []string{
				"Summarize this document for me",
				"Draft an email to a customer",
			},
			AvailableModels:   []string{"gemini-2.5-flash", "gemini-2.5-pro"},
			AvailablePersonas: []string{"Helpful Assistant", "Concise Analyst"},
			SelectedModel:     "gemini-2.5-flash",
			SelectedPersona:   "Helpful Assistant",
			Functions:         []model.AppFunction{},
			Chats:             []model.ChatEntry{},
			KnowledgeBase:     []model.KnowledgeFile{},
			Theme:             defaultTheme(),
		},
		{
			ID:          "container-sales",
			Name:        "Sales",
			Description: "Offers, follow-ups and account research",
			Icon:        "briefcase",
			QuickQuestions: []string{
				"Write a follow-up for yesterday's demo",
			},
			AvailableModels:   []string{"gemini-2.5-flash"},
			AvailablePersonas: []string{"Helpful Assistant"},
			SelectedModel:     "gemini-2.5-flash",
			SelectedPersona:   "Helpful Assistant",
			Functions:         []model.AppFunction{},
			Chats:             []model.ChatEntry{},
			KnowledgeBase:     []model.KnowledgeFile{},
			Theme:             defaultTheme(),
		},
	}
}

func defaultTheme() model.ChatTheme {
	return model.ChatTheme{
		UserBg:             "#2563eb",
		UserText:           "#ffffff",
		BotBg:              "#f3f4f6",
		BotText:            "#111827",
		BgGradientStart:    "#eef2ff",
		BgGradientEnd:      "#ffffff",
		SidebarBg:          "#111827",
		SidebarText:        "#e5e7eb",
		SidebarHighlightBg: "#1f2937",
	}
}
