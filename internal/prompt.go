package internal

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// PromptData for template injection
type PromptData struct {
	Title      string
	VideoID    string
	Taxonomy   string
	Transcript string
}

// PromptManager handles loading and processing classification prompt templates
type PromptManager struct {
	promptFile   string
	promptString string
	configDir    string
	taxonomy     []string
}

// NewPromptManager creates a new prompt manager
func NewPromptManager(configDir, promptSetting string, taxonomy []string) *PromptManager {
	pm := &PromptManager{
		configDir: configDir,
		taxonomy:  taxonomy,
	}

	if promptSetting != "" {
		if IsLikelyFilePath(promptSetting) && FileExists(promptSetting) {
			pm.promptFile = promptSetting
		} else {
			pm.promptString = promptSetting
		}
	}

	return pm
}

// strictSuffix is appended when a prior response violated the schema.
const strictSuffix = "\n\nYour previous response was not valid. Respond with ONLY the JSON object, " +
	"no code fences, no prose, and use a label from the allowed set exactly as written."

// CreatePrompt builds a classification prompt from a video and its transcript.
// strict adds the corrective instruction used after a schema violation.
func (pm *PromptManager) CreatePrompt(video *Video, transcript string, strict bool) (string, error) {
	var tmplContent string

	if pm.promptString != "" {
		tmplContent = pm.promptString
	} else {
		promptFile := pm.promptFile
		if promptFile == "" {
			promptFile = filepath.Join(pm.configDir, "classify_prompt.txt")
		}

		content, err := os.ReadFile(promptFile)
		if err != nil {
			// Fall back to the embedded default when the config dir has not
			// been materialized yet.
			content, err = defaultFS.ReadFile("classify_prompt.txt")
			if err != nil {
				return "", fmt.Errorf("reading prompt template: %w", err)
			}
		}
		tmplContent = string(content)
	}

	tmpl, err := template.New("classify").Parse(tmplContent)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template: %w", err)
	}

	data := PromptData{
		Taxonomy:   "- " + strings.Join(pm.taxonomy, "\n- "),
		Transcript: transcript,
	}
	if video != nil {
		data.Title = video.Title
		data.VideoID = video.VideoID
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template: %w", err)
	}

	prompt := buf.String()
	if strict {
		prompt += strictSuffix
	}
	return prompt, nil
}

// IsLikelyFilePath uses heuristics to determine if a string is likely a file path
func IsLikelyFilePath(s string) bool {
	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}

	if strings.Contains(s, ".txt") || strings.Contains(s, ".md") ||
		strings.Contains(s, ".template") || strings.Contains(s, ".tmpl") {
		return true
	}

	// If it's longer than 200 characters, it's likely a prompt string
	if len(s) > 200 {
		return false
	}

	return !strings.Contains(s, " ") && !strings.Contains(s, "\n")
}
