package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// PromptProfile is a named system-instruction template the chat surface can
// select per request: general tutoring, lesson planning, question generation.
type PromptProfile struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Instruction  string   `yaml:"instruction" validate:"required"`
	Temperature  *float32 `yaml:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens    *int     `yaml:"max_tokens" validate:"omitempty,gt=0"`
	SearchMode   bool     `yaml:"search_mode"`
	DefaultTitle string   `yaml:"default_title"`
}

// PromptProfiles is the set of profiles known to the service.
type PromptProfiles struct {
	Default  string                   `yaml:"default"`
	Profiles map[string]PromptProfile `yaml:"profiles"`
}

// LoadPromptProfiles reads and validates a YAML profile file.
func LoadPromptProfiles(path string) (*PromptProfiles, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var profiles PromptProfiles
	if err := yaml.Unmarshal(raw, &profiles); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if len(profiles.Profiles) == 0 {
		return nil, fmt.Errorf("no profiles defined in %s", path)
	}
	if profiles.Default == "" {
		return nil, fmt.Errorf("no default profile named in %s", path)
	}
	if _, ok := profiles.Profiles[profiles.Default]; !ok {
		return nil, fmt.Errorf("default profile %q not defined in %s", profiles.Default, path)
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	for name, profile := range profiles.Profiles {
		if strings.TrimSpace(profile.Instruction) == "" {
			return nil, fmt.Errorf("profile %q has an empty instruction", name)
		}
		if err := validate.Struct(profile); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
	}

	return &profiles, nil
}

// Resolve returns the named profile, falling back to the default when the
// name is empty or unknown.
func (p *PromptProfiles) Resolve(name string) PromptProfile {
	if profile, ok := p.Profiles[name]; ok {
		return profile
	}
	return p.Profiles[p.Default]
}

// DefaultPromptProfiles returns the built-in profile set used when no
// profile file is configured.
func DefaultPromptProfiles() *PromptProfiles {
	return &PromptProfiles{
		Default: "tutoring",
		Profiles: map[string]PromptProfile{
			"tutoring": {
				Name:        "tutoring",
				Description: "General tutoring assistant",
				Instruction: "You are a patient tutor. Explain concepts step by step and check for understanding before moving on.",
			},
			"lesson": {
				Name:        "lesson",
				Description: "Lesson plan generation",
				Instruction: "You are a curriculum assistant. Produce structured lesson plans with objectives, activities and assessment ideas.",
			},
			"questions": {
				Name:        "questions",
				Description: "Practice question generation",
				Instruction: "You are an assessment assistant. Generate practice questions with worked answers at the requested difficulty.",
			},
		},
	}
}
