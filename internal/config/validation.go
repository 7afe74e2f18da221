package config

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	hcmerrors "github.com/conneroisu/hcm/internal/errors"
)

// Accepted enum values.
var (
	Formats    = []string{"yaml", "json", "text"}
	LogLevels  = []string{"debug", "info", "warn", "error"}
	LogFormats = []string{"text", "json"}
)

// Validate checks every setting and reports all problems at once.
func Validate(config *Config) error {
	var errs hcmerrors.ValidationErrorCollection

	for _, p := range config.Modules.Paths {
		if strings.TrimSpace(p) == "" {
			errs.AddField(KeyModulePaths, p, "module path must not be empty")
		}
		if strings.ContainsRune(p, 0) {
			errs.AddField(KeyModulePaths, p, "module path contains a NUL byte")
		}
	}
	for _, pattern := range config.Modules.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			errs.AddField(KeyModuleExclude, pattern, "invalid glob pattern",
				"use doublestar syntax, for example '**/target/**'")
		}
	}

	checkEnum(&errs, KeyBuildFormat, config.Build.Format, Formats)
	checkEnum(&errs, KeyLogLevel, config.Log.Level, LogLevels)
	checkEnum(&errs, KeyLogFormat, config.Log.Format, LogFormats)

	if !strings.HasPrefix(config.HST.HostsPath, "/") {
		errs.AddField(KeyHostsPath, config.HST.HostsPath, "hosts path must be absolute",
			fmt.Sprintf("for example '%s'", DefaultHostsPath))
	}
	if config.Watch.Debounce < 0 {
		errs.AddField(KeyWatchDebounce, config.Watch.Debounce, "debounce must not be negative")
	}

	if !errs.HasErrors() {
		return nil
	}
	err := errs.ToHcmError()
	err.Type = hcmerrors.ErrorTypeConfig
	err.Code = hcmerrors.ErrCodeConfigInvalid
	err.Message = "invalid configuration: " + err.Message
	return err
}

func checkEnum(errs *hcmerrors.ValidationErrorCollection, key, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	errs.AddField(key, value, fmt.Sprintf("unsupported value '%s'", value),
		"expected one of: "+strings.Join(allowed, ", "))
}

func newConfigError(msg string, cause error) error {
	return hcmerrors.NewConfigError(hcmerrors.ErrCodeConfigInvalid, msg).WithCause(cause)
}
