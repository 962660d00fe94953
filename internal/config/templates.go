package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"battleroyale/server/internal/agent"
)

// templateFile is the YAML shape on disk; agent.Template itself carries
// no yaml tags since it is also the in-memory type decision/world take.
type templateFile struct {
	Agents []struct {
		Name        string `yaml:"name"`
		Personality string `yaml:"personality"`
		Description string `yaml:"description"`
		Base        struct {
			HP      int    `yaml:"hp"`
			Attack  int    `yaml:"attack"`
			Defense int    `yaml:"defense"`
			Weapon  string `yaml:"weapon"`
		} `yaml:"base"`
	} `yaml:"agents"`
}

// LoadTemplates reads agent templates from a YAML file at path, the way
// the voxelcraft example loads its tuning.yaml. An empty path returns
// DefaultTemplates for zero-config startup.
func LoadTemplates(path string) ([]agent.Template, error) {
	if path == "" {
		return DefaultTemplates(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read templates %s: %w", path, err)
	}
	var file templateFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("config: parse templates %s: %w", path, err)
	}
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("config: %s declares no agents", path)
	}
	templates := make([]agent.Template, len(file.Agents))
	for i, a := range file.Agents {
		templates[i] = agent.Template{
			Name:        a.Name,
			Personality: a.Personality,
			Description: a.Description,
			Base: agent.BaseStats{
				HP:      a.Base.HP,
				Attack:  a.Base.Attack,
				Defense: a.Base.Defense,
				Weapon:  a.Base.Weapon,
			},
		}
	}
	return templates, nil
}

// DefaultTemplates is the built-in roster used when no YAML file is
// configured, matching world.DefaultConfig's default AgentCount of 10.
func DefaultTemplates() []agent.Template {
	return []agent.Template{
		{Name: "Rex", Personality: "aggressive", Description: "Charges toward the nearest threat.", Base: agent.BaseStats{HP: 100, Attack: 12, Defense: 4, Weapon: "sword"}},
		{Name: "Zara", Personality: "cautious", Description: "Keeps distance and favors retreat.", Base: agent.BaseStats{HP: 100, Attack: 8, Defense: 7, Weapon: "bow"}},
		{Name: "Koda", Personality: "opportunist", Description: "Strikes isolated or weakened targets.", Base: agent.BaseStats{HP: 95, Attack: 10, Defense: 5, Weapon: "dagger"}},
		{Name: "Vex", Personality: "aggressive", Description: "Seeks out fights early.", Base: agent.BaseStats{HP: 105, Attack: 13, Defense: 3, Weapon: "axe"}},
		{Name: "Luna", Personality: "diplomat", Description: "Prefers alliances over combat.", Base: agent.BaseStats{HP: 90, Attack: 7, Defense: 6, Weapon: "staff"}},
		{Name: "Orin", Personality: "cautious", Description: "Scouts before committing to a fight.", Base: agent.BaseStats{HP: 100, Attack: 9, Defense: 6, Weapon: "spear"}},
		{Name: "Mira", Personality: "opportunist", Description: "Loots first, fights second.", Base: agent.BaseStats{HP: 92, Attack: 9, Defense: 5, Weapon: "dagger"}},
		{Name: "Thorn", Personality: "aggressive", Description: "Holds ground and punishes approach.", Base: agent.BaseStats{HP: 110, Attack: 11, Defense: 6, Weapon: "axe"}},
		{Name: "Iris", Personality: "diplomat", Description: "Brokers truces when outnumbered.", Base: agent.BaseStats{HP: 88, Attack: 7, Defense: 5, Weapon: "bow"}},
		{Name: "Dax", Personality: "cautious", Description: "Withdraws to the zone center early.", Base: agent.BaseStats{HP: 98, Attack: 9, Defense: 6, Weapon: "sword"}},
	}
}
