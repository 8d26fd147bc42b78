package config

import "testing"

func validConfig() *Config {
	return &Config{
		Project: Project{
			Name:     "demo",
			Path:     "/tmp/proj",
			Metapath: "meta",
			Downpath: "data",
		},
		Logging: Logging{
			DB:        "/tmp/qc.db",
			Directory: "/tmp/logs",
		},
		ImageProducts: ImageProducts{PrimaryPlatform: "Sentinel-2"},
		Stages:        []string{"search", "download"},
	}
}

func TestValidateOK(t *testing.T) {
	if errs := Validate(validConfig()); len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidateMissingFields(t *testing.T) {
	cfg := validConfig()
	cfg.Project.Path = ""
	cfg.Logging.DB = ""
	cfg.Stages = nil

	errs := Validate(cfg)
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), errs)
	}
	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, f := range []string{"project.path", "logging.db", "stages"} {
		if !fields[f] {
			t.Errorf("missing error for %s", f)
		}
	}
}

func TestValidateDuplicateStage(t *testing.T) {
	cfg := validConfig()
	cfg.Stages = []string{"search", "search"}
	errs := Validate(cfg)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if errs[0].Field != "stages[1]" {
		t.Errorf("field = %q", errs[0].Field)
	}
}

func TestValidateUnrecognizedPlatform(t *testing.T) {
	cfg := validConfig()
	cfg.ImageProducts.SupplementaryPlatform = "MODIS"
	errs := Validate(cfg)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if errs[0].Field != "image_products.supplementary_platform" {
		t.Errorf("field = %q", errs[0].Field)
	}
}
