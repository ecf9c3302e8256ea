// Package settings owns the user settings, the derived status and the
// transcription cache of one execution context, and keeps them in step with
// persistent storage.
package settings

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/leonardotrapani/watranscriber/internal/provider"
)

// Storage keys
const (
	KeySettings            = "settings"
	KeyTranscriptionAPIKey = "transcriptionApiKey"
	KeyProcessingAPIKey    = "processingApiKey"
	KeyCache               = "wa-transcriptions"
)

// Settings is the persisted user configuration. The JSON names are the keys
// of the synced settings blob.
type Settings struct {
	Language                  string `json:"language" validate:"required,language"`
	PromptTemplate            string `json:"promptTemplate"`
	ProcessingAPIKey          string `json:"processingApiKey"`
	TranscriptionAPIKey       string `json:"transcriptionApiKey"`
	IsExtensionEnabled        bool   `json:"isExtensionEnabled"`
	ProcessingModel           string `json:"processingModel"`
	TranscriptionModel        string `json:"transcriptionModel"`
	LocalWhisperURL           string `json:"localWhisperUrl" validate:"omitempty,url"`
	OllamaServerURL           string `json:"ollamaServerUrl" validate:"omitempty,url"`
	ProcessingProviderType    string `json:"processingProviderType" validate:"required"`
	TranscriptionProviderType string `json:"transcriptionProviderType" validate:"required"`
}

// Defaults returns the hard-coded settings with the registry's default
// providers selected.
func Defaults(reg *provider.Registry) Settings {
	return Settings{
		Language:                  provider.LanguageAuto,
		IsExtensionEnabled:        true,
		ProcessingModel:           "gpt-4o",
		TranscriptionModel:        "whisper-1",
		LocalWhisperURL:           "http://localhost:9000",
		OllamaServerURL:           "http://localhost:11434",
		ProcessingProviderType:    reg.DefaultProcessorID(),
		TranscriptionProviderType: reg.DefaultTranscriberID(),
	}
}

// APIKey returns the key configured for a category.
func (s Settings) APIKey(c provider.Category) string {
	if c == provider.Processing {
		return s.ProcessingAPIKey
	}
	return s.TranscriptionAPIKey
}

// ServerURL returns the local server URL configured for a category.
func (s Settings) ServerURL(c provider.Category) string {
	if c == provider.Processing {
		return s.OllamaServerURL
	}
	return s.LocalWhisperURL
}

// ProviderID returns the selected provider id for a category.
func (s Settings) ProviderID(c provider.Category) string {
	if c == provider.Processing {
		return s.ProcessingProviderType
	}
	return s.TranscriptionProviderType
}

// Patch is a partial settings update. Nil fields are left alone.
type Patch struct {
	Language                  *string `json:"language,omitempty"`
	PromptTemplate            *string `json:"promptTemplate,omitempty"`
	ProcessingAPIKey          *string `json:"processingApiKey,omitempty"`
	TranscriptionAPIKey       *string `json:"transcriptionApiKey,omitempty"`
	IsExtensionEnabled        *bool   `json:"isExtensionEnabled,omitempty"`
	ProcessingModel           *string `json:"processingModel,omitempty"`
	TranscriptionModel        *string `json:"transcriptionModel,omitempty"`
	LocalWhisperURL           *string `json:"localWhisperUrl,omitempty"`
	OllamaServerURL           *string `json:"ollamaServerUrl,omitempty"`
	ProcessingProviderType    *string `json:"processingProviderType,omitempty"`
	TranscriptionProviderType *string `json:"transcriptionProviderType,omitempty"`
}

// Apply returns s with every non-nil field of p replaced.
func (p Patch) Apply(s Settings) Settings {
	pv := reflect.ValueOf(p)
	sv := reflect.ValueOf(&s).Elem()
	for i := 0; i < pv.NumField(); i++ {
		f := pv.Field(i)
		if f.IsNil() {
			continue
		}
		sv.FieldByName(pv.Type().Field(i).Name).Set(f.Elem())
	}
	return s
}

// IsEmpty reports whether p changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Full returns a patch that replaces every field with the values of s.
func Full(s Settings) Patch {
	var p Patch
	pv := reflect.ValueOf(&p).Elem()
	sv := reflect.ValueOf(s)
	for i := 0; i < pv.NumField(); i++ {
		v := reflect.New(sv.Field(i).Type())
		v.Elem().Set(sv.FieldByName(pv.Type().Field(i).Name))
		pv.Field(i).Set(v)
	}
	return p
}

// SetField parses a single "key=value" style assignment by JSON key name,
// as used by the settings CLI.
func (p *Patch) SetField(key, value string) error {
	var raw []byte
	switch key {
	case "isExtensionEnabled":
		raw = []byte(value)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return err
		}
		raw = b
	}
	if !slices.Contains(Keys(), key) {
		return fmt.Errorf("unknown setting %q", key)
	}
	b, err := json.Marshal(map[string]json.RawMessage{key: raw})
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	var next Patch
	if err := json.Unmarshal(b, &next); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*p = p.Merge(next)
	return nil
}

// Merge returns p with the non-nil fields of b laid over it.
func (p Patch) Merge(b Patch) Patch {
	av := reflect.ValueOf(&p).Elem()
	bv := reflect.ValueOf(b)
	for i := 0; i < bv.NumField(); i++ {
		if !bv.Field(i).IsNil() {
			av.Field(i).Set(bv.Field(i))
		}
	}
	return p
}

// Keys returns the JSON names of every setting, sorted.
func Keys() []string {
	t := reflect.TypeOf(Settings{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		keys = append(keys, jsonName(t.Field(i)))
	}
	sort.Strings(keys)
	return keys
}

// ChangedKeys returns the JSON names of the fields that differ between prev
// and cur. A nil prev counts every key as changed.
func ChangedKeys(prev *Settings, cur Settings) []string {
	if prev == nil {
		return Keys()
	}
	pv := reflect.ValueOf(*prev)
	cv := reflect.ValueOf(cur)
	var changed []string
	for i := 0; i < cv.NumField(); i++ {
		if pv.Field(i).Interface() != cv.Field(i).Interface() {
			changed = append(changed, jsonName(cv.Type().Field(i)))
		}
	}
	sort.Strings(changed)
	return changed
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
		return slices.Contains(provider.SupportedLanguages, fl.Field().String())
	})
	return v
}

// Validate checks field formats and that both provider ids are registered.
func Validate(s Settings, reg *provider.Registry) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if _, ok := reg.Info(provider.Transcription, s.TranscriptionProviderType); !ok {
		return &provider.NotFoundError{Category: provider.Transcription, ID: s.TranscriptionProviderType}
	}
	if _, ok := reg.Info(provider.Processing, s.ProcessingProviderType); !ok {
		return &provider.NotFoundError{Category: provider.Processing, ID: s.ProcessingProviderType}
	}
	return nil
}
