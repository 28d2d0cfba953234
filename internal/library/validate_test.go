package library

import (
	"testing"

	"saveguard/internal/core"
)

func TestValidateRequest_RejectsMissingRequiredField(t *testing.T) {
	err := validateRequest(AddGameRequest{Name: "", InstallPath: "y", ExePath: "x"})
	if err == nil {
		t.Fatal("validateRequest() with a blank Name: want error, got nil")
	}
	invalid, ok := err.(*core.InvalidInput)
	if !ok {
		t.Fatalf("validateRequest() error type = %T, want *core.InvalidInput", err)
	}
	if invalid.Field != "Name" {
		t.Errorf("InvalidInput.Field = %q, want %q", invalid.Field, "Name")
	}
}

func TestValidateRequest_RejectsInvalidUUID(t *testing.T) {
	err := validateRequest(AddLocationRequest{GameID: "not-a-uuid", Path: "x", Type: "folder"})
	if err == nil {
		t.Fatal("validateRequest() with a non-UUID GameID: want error, got nil")
	}
}

func TestValidateRequest_RejectsLocationTypeOutsideEnum(t *testing.T) {
	err := validateRequest(AddLocationRequest{GameID: "5f0f3e9a-6c0c-4a2c-9e0e-2f7a1a9b9b9b", Path: "x", Type: "cloud"})
	if err == nil {
		t.Fatal("validateRequest() with Type=cloud: want error, got nil")
	}
}

func TestValidateRequest_AcceptsValidRequest(t *testing.T) {
	err := validateRequest(AddGameRequest{Name: "Celeste", InstallPath: "y", ExePath: "x"})
	if err != nil {
		t.Errorf("validateRequest() on a valid request: want nil, got %v", err)
	}
}
