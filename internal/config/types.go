package config

// Config is the top-level configuration parsed from one or more YAML files.
type Config struct {
	Project       Project       `yaml:"project"`
	Logging       Logging       `yaml:"logging"`
	ImageProducts ImageProducts `yaml:"image_products"`
	Stages        []string      `yaml:"stages"`
	Strict        Strict        `yaml:"strict"`
}

// Project locates the working tree for one quality-control project.
type Project struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Metapath string `yaml:"metapath"` // entity metadata files, relative to Path
	Downpath string `yaml:"downpath"` // downloaded product data, relative to Path
}

// Logging configures the job ledger and the per-job log/response directory.
type Logging struct {
	DB        string `yaml:"db"`
	Directory string `yaml:"directory"`
	Level     string `yaml:"level"`
}

// ImageProducts assigns acquisition platforms to the two pipeline roles.
// An empty value leaves the role unconfigured and the fan-out skips it.
type ImageProducts struct {
	PrimaryPlatform       string `yaml:"primary_platform"`
	SupplementaryPlatform string `yaml:"supplementary_platform"`
}

// Strict toggles hard failures where the engine would otherwise degrade.
type Strict struct {
	Enabled bool `yaml:"enabled"`
}

// MetaDir returns the absolute entity-metadata directory.
func (c *Config) MetaDir() string {
	return joinProject(c.Project.Path, c.Project.Metapath)
}

// DataDir returns the absolute product-data directory.
func (c *Config) DataDir() string {
	return joinProject(c.Project.Path, c.Project.Downpath)
}

// Platform returns the platform name configured for a role, or "" when the
// role is unconfigured.
func (c *Config) Platform(role string) string {
	switch role {
	case "primary":
		return c.ImageProducts.PrimaryPlatform
	case "supplementary":
		return c.ImageProducts.SupplementaryPlatform
	}
	return ""
}
