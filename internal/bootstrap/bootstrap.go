// Package bootstrap resolves the one piece of configuration that has to
// exist before anything else can run: where the data root lives. Every
// other setting lives in settings.json inside that data root and is
// handled by the library package once it is reachable.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

const (
	envDataRoot    = "SAVEGUARD_DATA_ROOT"
	bootstrapFile  = "bootstrap.toml"
	appDirName     = "SaveGuard"
)

// File is the on-disk shape of bootstrap.toml.
type File struct {
	DataRoot string `toml:"data_root"`
}

// Resolve determines the data root, in order: the SAVEGUARD_DATA_ROOT
// environment variable, the data_root recorded in bootstrap.toml inside the
// OS default application-data directory, then that directory itself.
func Resolve() (string, error) {
	v := viper.New()
	v.SetEnvPrefix("saveguard")
	v.BindEnv("data_root", envDataRoot)
	if v.GetString("data_root") != "" {
		return v.GetString("data_root"), nil
	}

	configDir, err := defaultConfigDir()
	if err != nil {
		return "", err
	}

	bootstrapPath := filepath.Join(configDir, bootstrapFile)
	if f, err := ReadBootstrapFile(bootstrapPath); err == nil && f.DataRoot != "" {
		return f.DataRoot, nil
	}

	return configDir, nil
}

// ReadBootstrapFile decodes bootstrap.toml at path.
func ReadBootstrapFile(path string) (File, error) {
	var f File
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	if err := toml.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return f, nil
}

// WriteBootstrapFile writes bootstrap.toml at path, creating parent
// directories as needed.
func WriteBootstrapFile(path string, f File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer out.Close()
	if err := toml.NewEncoder(out).Encode(f); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return nil
}

func defaultConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		base := os.Getenv("APPDATA")
		if base == "" {
			return "", fmt.Errorf("APPDATA is not set")
		}
		return filepath.Join(base, appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "saveguard"), nil
}

