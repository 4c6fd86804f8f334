package pool

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/planweave/planweave/pkg/models"
)

// profileManifest is the on-disk shape of a builtin worker profile file.
type profileManifest struct {
	Workers []workerProfile `yaml:"workers"`
}

type workerProfile struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	SystemPrompt string   `yaml:"system_prompt"`
	Capabilities []string `yaml:"capabilities"`
}

// LoadProfiles registers builtin workers from a YAML manifest. Profile
// workers carry origin builtin and may be overwritten by later manifests,
// never by dynamic creation.
func (m *Manager) LoadProfiles(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read worker profiles: %w", err)
	}

	var manifest profileManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("parse worker profiles %s: %w", path, err)
	}

	for _, p := range manifest.Workers {
		info := models.WorkerInfo{
			Name:         p.Name,
			Capabilities: p.Capabilities,
			SystemPrompt: p.SystemPrompt,
			Description:  p.Description,
			Origin:       models.OriginBuiltin,
		}
		if err := m.CreateWorker(info, true); err != nil {
			return fmt.Errorf("register profile worker %s: %w", p.Name, err)
		}
	}
	return nil
}
