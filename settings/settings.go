package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/TwiN/deepmerge"
	"github.com/mitchellh/mapstructure"

	"github.com/pathline/lis/config"
	"github.com/pathline/lis/errors"
)

const (
	CollectionName = "settings"
	DocumentId     = "lab"
)

var ErrNotFound = fmt.Errorf("settings %w", errors.NotFound)

type Service interface {
	Get(ctx context.Context) (*Settings, error)
	// Update merges the JSON object patch into the current settings.
	Update(ctx context.Context, patch []byte, actor string) (*Settings, error)
}

type Repository interface {
	Get(ctx context.Context) (*Settings, error)
	Save(ctx context.Context, settings Settings) (*Settings, error)
}

type Pathologist struct {
	Name          string `json:"name,omitempty" bson:"name,omitempty"`
	Qualification string `json:"qualification,omitempty" bson:"qualification,omitempty"`
	Registration  string `json:"registration,omitempty" bson:"registration,omitempty"`
}

type Settings struct {
	LabName      string      `json:"labName" bson:"labName"`
	Tagline      string      `json:"tagline,omitempty" bson:"tagline,omitempty"`
	Address      string      `json:"address,omitempty" bson:"address,omitempty"`
	Phone        string      `json:"phone,omitempty" bson:"phone,omitempty"`
	Email        string      `json:"email,omitempty" bson:"email,omitempty"`
	Website      string      `json:"website,omitempty" bson:"website,omitempty"`
	LogoUrl      string      `json:"logoUrl,omitempty" bson:"logoUrl,omitempty"`
	Currency     string      `json:"currency" bson:"currency"`
	ReportFooter string      `json:"reportFooter,omitempty" bson:"reportFooter,omitempty"`
	InvoiceNote  string      `json:"invoiceNote,omitempty" bson:"invoiceNote,omitempty"`
	Pathologist  Pathologist `json:"pathologist" bson:"pathologist"`
	UpdatedBy    string      `json:"updatedBy,omitempty" bson:"updatedBy,omitempty"`
	UpdatedTime  time.Time   `json:"updatedAt" bson:"updatedTime"`
}

// Default is the profile served until one is saved.
func Default(cfg *config.Config) Settings {
	return Settings{
		LabName:  cfg.LabName,
		Currency: "INR",
	}
}

func (s *Settings) Validate() error {
	if strings.TrimSpace(s.LabName) == "" {
		return errors.Validation("Lab name is required")
	}
	if strings.TrimSpace(s.Currency) == "" {
		return errors.Validation("Currency is required")
	}
	return nil
}

// Merge applies patch on top of current. Nested objects are merged key by key and
// scalar values in patch replace the current ones.
func Merge(current Settings, patch []byte) (Settings, error) {
	var overrides map[string]interface{}
	if err := json.Unmarshal(patch, &overrides); err != nil {
		return Settings{}, fmt.Errorf("%w: settings must be a JSON object", errors.BadRequest)
	}
	// Read-only attributes
	delete(overrides, "updatedBy")
	delete(overrides, "updatedAt")

	base, err := json.Marshal(current)
	if err != nil {
		return Settings{}, err
	}
	src, err := json.Marshal(overrides)
	if err != nil {
		return Settings{}, err
	}
	merged, err := deepmerge.JSON(base, src, deepmerge.Config{
		PreventMultipleDefinitionsOfKeysWithPrimitiveValue: false,
	})
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %s", errors.BadRequest, err.Error())
	}

	var values map[string]interface{}
	if err := json.Unmarshal(merged, &values); err != nil {
		return Settings{}, err
	}
	delete(values, "updatedAt")

	result := Settings{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &result,
	})
	if err != nil {
		return Settings{}, err
	}
	if err := decoder.Decode(values); err != nil {
		return Settings{}, fmt.Errorf("%w: %s", errors.BadRequest, err.Error())
	}
	result.UpdatedTime = current.UpdatedTime
	return result, nil
}
