package config

import "time"

// MemoryConfig configures the history, semantic memory, and profile stores.
type MemoryConfig struct {
	// SQLite database path shared by all stores
	DatabasePath string `yaml:"database_path"`

	// Fraction of the history token budget reserved for the most recent
	// conversational flow; the remainder goes to older historical context.
	ConversationWeight float64 `yaml:"conversation_weight"`

	// How many recent summaries the conversation portion considers
	ConversationDepth int `yaml:"conversation_depth"`

	// Relatedness score at or above which consecutive summaries are
	// grouped into the same conversation thread
	ThreadThreshold float64 `yaml:"thread_threshold"`

	// Semantic memory tier
	SemanticEnabled    bool    `yaml:"semantic_enabled"`
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
	TopK               int     `yaml:"top_k"`

	// Entity profile tier
	ProfileCacheTTL  time.Duration `yaml:"profile_cache_ttl"`
	BlurbCharLimit   int           `yaml:"blurb_char_limit"`
	MaxBlurbEntities int           `yaml:"max_blurb_entities"`

	// Retention sweeps (0 disables)
	RetentionDays int `yaml:"retention_days"`
}

// DefaultMemoryConfig returns defaults matching the tuned production values.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		DatabasePath:       "arklore.db",
		ConversationWeight: 0.3,
		ConversationDepth:  5,
		ThreadThreshold:    0.3,
		SemanticEnabled:    true,
		RelevanceThreshold: 0.7,
		TopK:               3,
		ProfileCacheTTL:    time.Hour,
		BlurbCharLimit:     500,
		MaxBlurbEntities:   5,
		RetentionDays:      90,
	}
}

// LoggingConfig controls the category file logger.
type LoggingConfig struct {
	// DebugMode gates all file logging; false means silent no-op.
	DebugMode bool `yaml:"debug_mode"`

	// Directory for per-category log files
	Dir string `yaml:"dir"`

	// Level: debug, info, warn, error
	Level string `yaml:"level"`

	// Per-category enable flags; empty means all categories enabled.
	Categories map[string]bool `yaml:"categories"`
}

// DefaultLoggingConfig returns production defaults (logging off).
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		DebugMode: false,
		Dir:       "logs",
		Level:     "info",
	}
}
