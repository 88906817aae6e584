package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrSkillNotFound indicates the registry has no skill with the given ID.
	ErrSkillNotFound = errors.New("skill not found")

	// ErrNoManifests indicates a directory contained no skill manifests.
	ErrNoManifests = errors.New("no skill manifests found")
)

// Parse decodes a skill manifest from JSON.
//
// Parse only checks that the document is well-formed JSON matching the
// schema shape; semantic validation is the Validator's job.
func Parse(data []byte) (*Skill, error) {
	var s Skill
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing skill manifest: %w", err)
	}
	return &s, nil
}

// LoadFile reads and parses a skill manifest file.
func LoadFile(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading skill manifest %s: %w", path, err)
	}
	return Parse(data)
}

// LoadResult pairs one loaded manifest with its validation report.
type LoadResult struct {
	Path   string
	Skill  *Skill
	Report *Report
}

// Registry holds validated skills keyed by ID.
//
// A registry is safe for concurrent readers; Load replaces the whole skill
// set atomically so concurrent pipeline runs never observe a half-loaded
// registry.
type Registry struct {
	validator *Validator
	logger    *zap.Logger

	mu     sync.RWMutex
	skills map[string]*Skill
}

// NewRegistry creates an empty skill registry.
func NewRegistry(validator *Validator, logger *zap.Logger) *Registry {
	if validator == nil {
		validator = NewValidator(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		validator: validator,
		logger:    logger,
		skills:    make(map[string]*Skill),
	}
}

// LoadDir loads skill manifests from dir.
//
// dir may be a single skill directory (containing skill.json) or a
// directory of skill directories. Every manifest found is parsed and
// validated; results are returned in path order. Only valid skills are
// admitted to the registry, and a skill whose ID collides with an
// already-admitted skill gets an extra error in its report.
func (r *Registry) LoadDir(dir string) ([]*LoadResult, error) {
	paths, err := discoverManifests(dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoManifests, dir)
	}

	results := make([]*LoadResult, 0, len(paths))
	admitted := make(map[string]*Skill)

	for _, path := range paths {
		result := &LoadResult{Path: path}

		skill, err := LoadFile(path)
		if err != nil {
			result.Report = &Report{
				Valid:    false,
				Errors:   []string{err.Error()},
				Warnings: []string{},
			}
			results = append(results, result)
			continue
		}

		result.Skill = skill
		result.Report = r.validator.Validate(skill)

		if result.Report.Valid {
			if _, exists := admitted[skill.ID]; exists {
				result.Report.errorf("skill id %q already registered by another manifest", skill.ID)
			} else {
				admitted[skill.ID] = skill
			}
		}

		results = append(results, result)
	}

	r.mu.Lock()
	r.skills = admitted
	r.mu.Unlock()

	r.logger.Info("skill registry loaded",
		zap.String("dir", dir),
		zap.Int("manifests", len(paths)),
		zap.Int("admitted", len(admitted)),
	)

	return results, nil
}

// Get returns the skill with the given ID.
func (r *Registry) Get(id string) (*Skill, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSkillNotFound, id)
	}
	return s, nil
}

// List returns all registered skills sorted by ID.
func (r *Registry) List() []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// discoverManifests finds skill.json files one or two levels under dir.
func discoverManifests(dir string) ([]string, error) {
	// Single skill directory.
	single := filepath.Join(dir, ManifestFileName)
	if _, err := os.Stat(single); err == nil {
		return []string{single}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading skills directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(dir, entry.Name(), ManifestFileName)
		if _, err := os.Stat(candidate); err == nil {
			paths = append(paths, candidate)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
