package stage

import (
	"fmt"

	"github.com/lucasnoah/orbitqc/internal/ledger"
)

// Multi dispatches a platform-branching stage to one runner per configured
// role. Runners share the response cursor, so entities from different
// platforms occupy distinct positions in the job's document list; tallies
// and produced-artifact sets are merged for reporting.
type Multi struct {
	ID        string
	Tag       string
	TagKeys   []string
	Artifacts []string
	Variants  map[Sensor]ComputeFunc

	produced map[string]struct{}
}

// Identifier implements Stage.
func (m *Multi) Identifier() string {
	return m.ID
}

// MeasurementTag implements Stage.
func (m *Multi) MeasurementTag() string {
	return m.Tag
}

// Produced returns the union of artifact paths across platform runners.
func (m *Multi) Produced() map[string]struct{} {
	return m.produced
}

// Run executes one runner per configured platform role, in role order.
// Unconfigured roles are skipped entirely.
func (m *Multi) Run(env *Env) error {
	m.produced = make(map[string]struct{})

	for _, role := range []ledger.Role{ledger.RolePrimary, ledger.RoleSupplementary} {
		name := env.Config.Platform(role.String())
		if name == "" {
			env.Log.Debug("platform role not configured, skipped",
				"stage", m.ID, "role", role.String())
			continue
		}
		sensor, err := ParseSensor(name)
		if err != nil {
			return &CriticalError{Stage: m.ID, Msg: err.Error()}
		}
		compute, ok := m.Variants[sensor]
		if !ok {
			return &DependencyError{
				Stage: m.ID,
				Err:   fmt.Errorf("no %s implementation", sensor),
			}
		}
		env.Log.Debug("platform resolved",
			"stage", m.ID, "role", role.String(), "platform", name)

		r := NewRunner(RunnerSpec{
			Identifier: m.ID,
			Tag:        m.Tag,
			TagKeys:    m.TagKeys,
			Artifacts:  m.Artifacts,
			Role:       role,
			Profile:    ProfileFor(sensor),
			Compute:    compute,
		}, env)
		if err := r.Run(); err != nil {
			return err
		}
		for path := range r.Produced() {
			m.produced[path] = struct{}{}
		}
	}
	return nil
}
