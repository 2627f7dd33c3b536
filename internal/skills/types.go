// Package skills discovers SKILL.md files from three precedence tiers and
// exposes them to the agent loop as a single callable tool.
package skills

// SkillEntry represents a discovered skill with its metadata and content.
type SkillEntry struct {
	// Name is the unique skill identifier (lowercase, hyphens allowed).
	Name string `json:"name" yaml:"name"`

	// Description explains what the skill does and when to use it.
	Description string `json:"description" yaml:"description"`

	// Homepage is an optional URL to skill documentation.
	Homepage string `json:"homepage,omitempty" yaml:"homepage"`

	// Content is the markdown body injected into the model prompt when the
	// skill tool is invoked with this skill's name.
	Content string `json:"-"`

	// Path is the directory path where the skill was discovered.
	Path string `json:"path"`

	// Source indicates where the skill was discovered from.
	Source SourceType `json:"source"`

	// SourcePriority is used for conflict resolution (higher wins).
	SourcePriority int `json:"-"`
}

// SourceType indicates where a skill was discovered from.
type SourceType string

const (
	SourceBundled   SourceType = "bundled"   // shipped with the binary
	SourceLocal     SourceType = "local"     // user-global, e.g. ~/.mini-agent/skills/
	SourceWorkspace SourceType = "workspace" // project-local, e.g. ./skills/
)

// SkillSnapshot is a lightweight representation for the read API.
type SkillSnapshot struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`
}

// ToSnapshot creates a lightweight snapshot for the read API.
func (s *SkillEntry) ToSnapshot() *SkillSnapshot {
	return &SkillSnapshot{
		Name:        s.Name,
		Description: s.Description,
		Path:        s.Path,
	}
}
