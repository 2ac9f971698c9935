package conversation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ===============================================
// Conversation Validation
// ===============================================

// ValidationConfig holds conversation-level validation rules
type ValidationConfig struct {
	MaxTitleLength         int
	MaxContentLength       int
	MaxMetadataKeys        int
	MaxMetadataKeyLength   int
	MaxMetadataValueLength int
}

// DefaultValidationConfig returns the default validation rules
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		MaxTitleLength:         256,
		MaxContentLength:       32768,
		MaxMetadataKeys:        16,
		MaxMetadataKeyLength:   64,
		MaxMetadataValueLength: 512,
	}
}

// Validator handles conversation and message validation
type Validator struct {
	config             *ValidationConfig
	publicIDPattern    *regexp.Regexp
	metadataKeyPattern *regexp.Regexp
}

// NewValidator creates a validator for conversations and messages
func NewValidator(config *ValidationConfig) *Validator {
	if config == nil {
		config = DefaultValidationConfig()
	}

	return &Validator{
		config:             config,
		publicIDPattern:    regexp.MustCompile(`^(conv|msg)_[a-z0-9]+$`),
		metadataKeyPattern: regexp.MustCompile(`^[a-zA-Z0-9_]+$`),
	}
}

// ValidateConversation performs full conversation validation
func (v *Validator) ValidateConversation(conv *Conversation) error {
	if conv == nil {
		return fmt.Errorf("conversation cannot be nil")
	}
	if strings.TrimSpace(conv.OwnerID) == "" {
		return fmt.Errorf("owner id cannot be empty")
	}
	if conv.Title != nil {
		if utf8.RuneCountInString(*conv.Title) > v.config.MaxTitleLength {
			return fmt.Errorf("title exceeds maximum length of %d characters", v.config.MaxTitleLength)
		}
	}
	return v.validateMetadata(conv.Metadata)
}

// ValidateConversationID checks a public conversation id format
func (v *Validator) ValidateConversationID(publicID string) error {
	if publicID == "" {
		return fmt.Errorf("conversation id cannot be empty")
	}
	if !strings.HasPrefix(publicID, "conv_") || !v.publicIDPattern.MatchString(publicID) {
		return fmt.Errorf("invalid conversation id format: %s", publicID)
	}
	return nil
}

// ValidateMessage performs full message validation
func (v *Validator) ValidateMessage(msg *Message) error {
	if msg == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if !msg.Sender.Valid() {
		return fmt.Errorf("invalid sender role: %s", msg.Sender)
	}
	if strings.TrimSpace(msg.Content) == "" {
		return fmt.Errorf("message content cannot be empty")
	}
	if utf8.RuneCountInString(msg.Content) > v.config.MaxContentLength {
		return fmt.Errorf("message content exceeds maximum length of %d characters", v.config.MaxContentLength)
	}
	return v.validateMetadata(msg.Metadata)
}

func (v *Validator) validateMetadata(metadata map[string]string) error {
	if len(metadata) > v.config.MaxMetadataKeys {
		return fmt.Errorf("metadata exceeds maximum of %d keys", v.config.MaxMetadataKeys)
	}
	for key, value := range metadata {
		if len(key) > v.config.MaxMetadataKeyLength {
			return fmt.Errorf("metadata key %q exceeds maximum length of %d", key, v.config.MaxMetadataKeyLength)
		}
		if !v.metadataKeyPattern.MatchString(key) {
			return fmt.Errorf("metadata key %q contains invalid characters", key)
		}
		if len(value) > v.config.MaxMetadataValueLength {
			return fmt.Errorf("metadata value for %q exceeds maximum length of %d", key, v.config.MaxMetadataValueLength)
		}
	}
	return nil
}
