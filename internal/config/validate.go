package config

import "fmt"

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// recognizedPlatforms is the set of platform names the engine can dispatch.
var recognizedPlatforms = map[string]bool{
	"Sentinel-2": true,
	"Landsat-8":  true,
}

// Validate checks a Config for structural and semantic errors. It returns
// a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Project.Path == "" {
		errs = append(errs, ValidationError{Field: "project.path", Message: "is required"})
	}
	if cfg.Project.Metapath == "" {
		errs = append(errs, ValidationError{Field: "project.metapath", Message: "is required"})
	}
	if cfg.Project.Downpath == "" {
		errs = append(errs, ValidationError{Field: "project.downpath", Message: "is required"})
	}
	if cfg.Logging.DB == "" {
		errs = append(errs, ValidationError{Field: "logging.db", Message: "is required"})
	}
	if cfg.Logging.Directory == "" {
		errs = append(errs, ValidationError{Field: "logging.directory", Message: "is required"})
	}
	if len(cfg.Stages) == 0 {
		errs = append(errs, ValidationError{Field: "stages", Message: "at least one stage is required"})
	}

	seen := make(map[string]bool)
	for i, id := range cfg.Stages {
		if id == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("stages[%d]", i),
				Message: "is required",
			})
			continue
		}
		if seen[id] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("stages[%d]", i),
				Message: fmt.Sprintf("duplicate stage %q", id),
			})
		}
		seen[id] = true
	}

	for _, role := range []string{"primary", "supplementary"} {
		name := cfg.Platform(role)
		if name != "" && !recognizedPlatforms[name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("image_products.%s_platform", role),
				Message: fmt.Sprintf("unrecognized platform %q", name),
			})
		}
	}

	return errs
}
