// Package config provides configuration loading for briefd.
package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root briefd configuration.
type Config struct {
	Data      DataConfig      `koanf:"data"`
	Chunking  ChunkingConfig  `koanf:"chunking"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Writer    WriterConfig    `koanf:"writer"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	LLM       LLMConfig       `koanf:"llm"`
	Eval      EvalConfig      `koanf:"eval"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DataConfig locates the persisted chunk and index artifacts.
type DataConfig struct {
	// RawDir holds source documents picked up by the ingest command.
	RawDir string `koanf:"raw_dir"`

	// ChunksPath is the newline-delimited JSON chunk file.
	ChunksPath string `koanf:"chunks_path"`

	// IndexPath is the directory holding the persisted vector index.
	IndexPath string `koanf:"index_path"`

	// IndexCollection names the index collection.
	IndexCollection string `koanf:"index_collection"`
}

// ChunkingConfig controls token windowing of oversized blocks.
type ChunkingConfig struct {
	MaxTokens int `koanf:"max_tokens"`
	Overlap   int `koanf:"overlap"`
}

// RetrievalConfig controls the research-stage search and quality gate.
type RetrievalConfig struct {
	// TopK is the number of nearest-neighbor candidates requested.
	TopK int `koanf:"top_k"`

	// DistanceThreshold is the gate cutoff: a best candidate above this
	// distance converts the result into an explicit not-found outcome.
	DistanceThreshold float64 `koanf:"distance_threshold"`

	// MaxChunkChars caps evidence text; longer text is truncated with an
	// ellipsis marker.
	MaxChunkChars int `koanf:"max_chunk_chars"`
}

// WriterConfig controls the grounded generation stage.
type WriterConfig struct {
	// MaxEvidenceItems caps the evidence context handed to the generator.
	MaxEvidenceItems int `koanf:"max_evidence_items"`
}

// PipelineConfig controls the orchestrator.
type PipelineConfig struct {
	// MaxResearchQuestions bounds the research fan-out.
	MaxResearchQuestions int `koanf:"max_research_questions"`
}

// LLMConfig configures the chat/embedding service client.
type LLMConfig struct {
	BaseURL    string   `koanf:"base_url"`
	ChatModel  string   `koanf:"chat_model"`
	EmbedModel string   `koanf:"embed_model"`
	Timeout    Duration `koanf:"timeout"`
	MaxRetries int      `koanf:"max_retries"`
}

// EvalConfig configures the evaluation runner.
type EvalConfig struct {
	QuestionsPath string `koanf:"questions_path"`
	OutDir        string `koanf:"out_dir"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Data.RawDir == "" {
		cfg.Data.RawDir = "data/raw"
	}
	if cfg.Data.ChunksPath == "" {
		cfg.Data.ChunksPath = "data/processed/chunks.jsonl"
	}
	if cfg.Data.IndexPath == "" {
		cfg.Data.IndexPath = "data/processed/index"
	}
	if cfg.Data.IndexCollection == "" {
		cfg.Data.IndexCollection = "briefd_chunks"
	}

	if cfg.Chunking.MaxTokens == 0 {
		cfg.Chunking.MaxTokens = 280
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 50
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 6
	}
	if cfg.Retrieval.DistanceThreshold == 0 {
		cfg.Retrieval.DistanceThreshold = 0.60
	}
	if cfg.Retrieval.MaxChunkChars == 0 {
		cfg.Retrieval.MaxChunkChars = 1400
	}

	if cfg.Writer.MaxEvidenceItems == 0 {
		cfg.Writer.MaxEvidenceItems = 8
	}

	if cfg.Pipeline.MaxResearchQuestions == 0 {
		cfg.Pipeline.MaxResearchQuestions = 3
	}

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434"
	}
	if cfg.LLM.ChatModel == "" {
		cfg.LLM.ChatModel = "qwen2.5:7b-instruct"
	}
	if cfg.LLM.EmbedModel == "" {
		cfg.LLM.EmbedModel = "mxbai-embed-large:latest"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(120 * time.Second)
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}

	if cfg.Eval.QuestionsPath == "" {
		cfg.Eval.QuestionsPath = "eval/questions.jsonl"
	}
	if cfg.Eval.OutDir == "" {
		cfg.Eval.OutDir = "eval/results"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Chunking.MaxTokens <= 0 {
		return fmt.Errorf("%w: chunking max_tokens must be positive", ErrInvalidConfig)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.MaxTokens {
		return fmt.Errorf("%w: chunking overlap must be in [0, max_tokens)", ErrInvalidConfig)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval top_k must be positive", ErrInvalidConfig)
	}
	if c.Retrieval.DistanceThreshold <= 0 {
		return fmt.Errorf("%w: retrieval distance_threshold must be positive", ErrInvalidConfig)
	}
	if c.Retrieval.MaxChunkChars <= 0 {
		return fmt.Errorf("%w: retrieval max_chunk_chars must be positive", ErrInvalidConfig)
	}
	if c.Writer.MaxEvidenceItems <= 0 {
		return fmt.Errorf("%w: writer max_evidence_items must be positive", ErrInvalidConfig)
	}
	if c.Pipeline.MaxResearchQuestions <= 0 {
		return fmt.Errorf("%w: pipeline max_research_questions must be positive", ErrInvalidConfig)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("%w: llm base_url required", ErrInvalidConfig)
	}
	return nil
}
