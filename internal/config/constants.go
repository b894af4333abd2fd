package config

import "time"

const (
	// EnvPrefix is prepended to every environment override.
	EnvPrefix = "TUTORGO_"

	DefaultServerAddress = ":8090"

	// Response cache
	ResponseCacheTTL        = 5 * time.Minute
	ResponseCacheMaxEntries = 50

	// Learning history window, per category
	HistoryHomeworkLimit = 10
	HistoryQuizLimit     = 10
	HistoryLessonLimit   = 10
	HistoryChatLogLimit  = 20

	// Context payload sent with each tutor call
	ContextLessonCount  = 3
	ContextQuizCount    = 3
	ContextChatLogCount = 5

	// Prior transcript forwarded to the model
	MessageHistoryLimit = 10

	// AI request timeout
	RequestTimeout = 90 * time.Second

	// Generator retry policy defaults
	DefaultRetryAttempts   = 3
	DefaultRetryBackoff    = 500 * time.Millisecond
	DefaultRetryMaxBackoff = 5 * time.Second

	// Generator item counts
	DefaultGenerateCount = 5
	MaxGenerateCount     = 20

	// Notifications kept per user
	NotificationInboxSize = 32

	// Uploaded notes
	MaxNotesUploadBytes = 5 << 20
	MaxNotesRunes       = 12000
)
