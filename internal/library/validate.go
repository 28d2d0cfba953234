package library

import (
	"github.com/go-playground/validator/v10"

	"saveguard/internal/core"
)

var validate = validator.New()

// AddGameRequest is the validated DTO behind Operations.AddGame.
type AddGameRequest struct {
	Name        string `validate:"required,min=1"`
	InstallPath string `validate:"required,min=1"`
	ExePath     string `validate:"required,min=1"`
}

// AddLocationRequest is the validated DTO behind Operations.AddSaveLocation.
type AddLocationRequest struct {
	GameID       string `validate:"required,uuid4"`
	Path         string `validate:"required,min=1"`
	Type         string `validate:"required,oneof=file folder"`
	AutoDetected bool
}

// UpdateSettingsRequest is the validated DTO behind Operations.UpdateSettings.
type UpdateSettingsRequest struct {
	BackupFrequencyMinutes int    `validate:"required,min=1"`
	RetentionCount         int    `validate:"required,min=1"`
	StorageRoot            string `validate:"omitempty,min=1"`
	DataRoot               string `validate:"omitempty,min=1"`
	CompressionEnabled     bool
}

// validateRequest runs struct-tag validation and wraps the first failure
// as a *core.InvalidInput, the concrete mechanism behind the InvalidInput
// taxonomy entry at the IPC boundary.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return &core.InvalidInput{Field: fe.Field(), Reason: fe.Tag()}
	}
	return &core.InvalidInput{Field: "request", Reason: err.Error()}
}
