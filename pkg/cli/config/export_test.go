package config

// NewGeminiForTest creates a Gemini config for testing purposes
func NewGeminiForTest(projectID, location string) *Gemini {
	return &Gemini{
		projectID: projectID,
		location:  location,
	}
}

// NewSlackForTest creates a Slack config for testing purposes
func NewSlackForTest(webhookURL, baseURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		baseURL:    baseURL,
	}
}

func NewRepositoryForTest(backend, projectID, postgresDSN string) *Repository {
	return &Repository{
		backend:     backend,
		projectID:   projectID,
		postgresDSN: postgresDSN,
	}
}

func NewStorageForTest(backend, localRoot, bucket string) *Storage {
	return &Storage{
		backend:   backend,
		localRoot: localRoot,
		bucket:    bucket,
	}
}

func NewAuthForTest(secret, jwksURL, noAuth string) *Auth {
	return &Auth{
		secret:  secret,
		jwksURL: jwksURL,
		noAuth:  noAuth,
	}
}

func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}

func NewTranscriptionForTest(apiKey string, chunkThreshold float64) *Transcription {
	return &Transcription{
		apiKey:         apiKey,
		model:          "whisper-1",
		ffmpeg:         "ffmpeg",
		ffprobe:        "ffprobe",
		chunkThreshold: chunkThreshold,
	}
}
