package config

const (
	defaultDataDir  = "~/.local/share/distill"
	defaultLogDir   = "~/.local/share/distill/logs"
	defaultAudioDir = "~/.local/share/distill/audio"

	defaultFetchUserAgent      = "distill/1.0 (+https://github.com/distill-pipeline/distill)"
	defaultFetchTimeoutSeconds = 30

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMReferer        = "https://github.com/distill-pipeline/distill"
	defaultLLMTitle          = "Distill Summarizer"
	defaultLLMTimeoutSeconds = 60

	defaultTranscriberModel    = "large-v3-turbo"
	defaultTranscriberLanguage = "en"

	defaultPollInterval       = 5
	defaultErrorRetryInterval = 10
	defaultWorkerCount        = 2
	defaultCheckoutBatchSize  = 5
	defaultCheckoutTimeout    = 600
	defaultStaleSweepInterval = 60
	defaultMaxRetries         = 3
	defaultMaxDelegationDepth = 3

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

func defaultPermanentStatuses() []int {
	return []int{401, 403, 404}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			AudioDir: defaultAudioDir,
		},
		Fetch: Fetch{
			UserAgent:         defaultFetchUserAgent,
			TimeoutSeconds:    defaultFetchTimeoutSeconds,
			PermanentStatuses: defaultPermanentStatuses(),
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Transcriber: Transcriber{
			Model:    defaultTranscriberModel,
			Language: defaultTranscriberLanguage,
		},
		Workflow: Workflow{
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			WorkerCount:        defaultWorkerCount,
			CheckoutBatchSize:  defaultCheckoutBatchSize,
			CheckoutTimeout:    defaultCheckoutTimeout,
			StaleSweepInterval: defaultStaleSweepInterval,
			MaxRetries:         defaultMaxRetries,
			MaxDelegationDepth: defaultMaxDelegationDepth,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
