package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Webhook: WebhookConfig{
			Path:        "/webhook",
			VerifyToken: "${WEBHOOK_VERIFY_TOKEN}",
			AppSecret:   "${META_APP_SECRET}",
		},
		Channels: ChannelsConfig{
			Instagram: InstagramConfig{
				AccessToken: "${IG_ACCESS_TOKEN}",
			},
			Messenger: MessengerConfig{
				PageToken: "${FB_PAGE_TOKEN}",
			},
			WhatsApp: WhatsAppConfig{
				AccessToken:   "${WA_ACCESS_TOKEN}",
				PhoneNumberID: "${WA_PHONE_NUMBER_ID}",
			},
		},
		Providers: ProvidersConfig{
			Gemini: GeminiConfig{
				APIKey: "${GEMINI_API_KEY}",
				Model:  "gemini-2.0-flash",
			},
		},
		Store: StoreConfig{
			DBPath: "~/.chatfunnel/conversations.db",
		},
		Pipeline: PipelineConfig{
			Workers:      5,
			QueueSize:    100,
			HistoryLimit: 10,
		},
		Business: BusinessConfig{
			Name:         "Nuestra empresa",
			ContactPhone: "+54 9 11 4444-5555",
			Services:     "servicios y presupuestos a medida",
		},
	}
}
