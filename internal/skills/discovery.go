package skills

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// DiscoverySource discovers skills from a specific source.
type DiscoverySource interface {
	// Type returns the source type identifier.
	Type() SourceType

	// Priority returns the source priority (higher wins in conflicts).
	Priority() int

	// Discover scans for skills and returns found entries.
	Discover(ctx context.Context) ([]*SkillEntry, error)
}

// LocalSource discovers skills from a local directory. Each skill lives in
// its own subdirectory containing a SKILL.md file.
type LocalSource struct {
	path       string
	sourceType SourceType
	priority   int
	logger     *slog.Logger
}

// NewLocalSource creates a local directory discovery source.
func NewLocalSource(path string, sourceType SourceType, priority int) *LocalSource {
	return &LocalSource{
		path:       path,
		sourceType: sourceType,
		priority:   priority,
		logger:     slog.Default().With("component", "skills", "source", sourceType),
	}
}

func (s *LocalSource) Type() SourceType {
	return s.sourceType
}

func (s *LocalSource) Priority() int {
	return s.priority
}

func (s *LocalSource) Discover(ctx context.Context) ([]*SkillEntry, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		s.logger.Debug("skills directory does not exist", "path", s.path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", s.path)
	}

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var found []*SkillEntry
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return found, ctx.Err()
		default:
		}

		if !entry.IsDir() {
			continue
		}

		skillPath := filepath.Join(s.path, entry.Name())
		skillFile := filepath.Join(skillPath, SkillFilename)

		if _, err := os.Stat(skillFile); os.IsNotExist(err) {
			continue
		}

		skill, err := ParseSkillFile(skillFile)
		if err != nil {
			s.logger.Warn("failed to parse skill", "path", skillPath, "error", err)
			continue
		}

		skill.Source = s.sourceType
		skill.SourcePriority = s.priority

		if err := ValidateSkill(skill); err != nil {
			s.logger.Warn("invalid skill", "path", skillPath, "error", err)
			continue
		}

		found = append(found, skill)
		s.logger.Debug("discovered skill", "name", skill.Name, "path", skillPath)
	}

	s.logger.Info("discovered skills", "count", len(found), "path", s.path)
	return found, nil
}

// DiscoverAll discovers skills from multiple sources with precedence.
// Higher priority sources override lower priority ones on name conflicts.
func DiscoverAll(ctx context.Context, sources []DiscoverySource) ([]*SkillEntry, error) {
	skillMap := make(map[string]*SkillEntry)

	for _, source := range sources {
		found, err := source.Discover(ctx)
		if err != nil {
			slog.Warn("skill discovery failed", "source", source.Type(), "error", err)
			continue
		}

		for _, skill := range found {
			existing, ok := skillMap[skill.Name]
			if !ok {
				skillMap[skill.Name] = skill
				continue
			}
			if skill.SourcePriority >= existing.SourcePriority {
				slog.Debug("skill override", "name", skill.Name, "oldSource", existing.Source, "newSource", skill.Source)
				skillMap[skill.Name] = skill
			}
		}
	}

	result := make([]*SkillEntry, 0, len(skillMap))
	for _, skill := range skillMap {
		result = append(result, skill)
	}
	return result, nil
}

// Precedence order for the three skill directories: built-in ships with the
// binary, user-global lives under the user's home directory, project-local
// lives under the current workspace. Later (higher) wins on name conflicts.
const (
	PriorityBuiltin = 10
	PriorityUser    = 20
	PriorityProject = 30
)

// BuildDefaultSources creates the three-tier discovery sources described in
// the skill reflection design: built-in < user-global < project-local.
func BuildDefaultSources(builtinPath, userPath, projectPath string) []DiscoverySource {
	var sources []DiscoverySource
	if builtinPath != "" {
		sources = append(sources, NewLocalSource(builtinPath, SourceBundled, PriorityBuiltin))
	}
	if userPath != "" {
		sources = append(sources, NewLocalSource(userPath, SourceLocal, PriorityUser))
	}
	if projectPath != "" {
		sources = append(sources, NewLocalSource(projectPath, SourceWorkspace, PriorityProject))
	}
	return sources
}
