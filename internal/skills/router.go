package skills

import (
	"sort"
	"strings"

	"finsight/internal/domain/analysis"
	"finsight/pkg/errors"
)

// Router resolves a skill id or legacy mode to a Skill.
// It is populated once at construction and read-only afterwards.
type Router struct {
	skills map[ID]Skill
	legacy map[string]ID
}

// NewRouter registers skills. A later skill with the same id replaces an earlier one.
func NewRouter(skills ...Skill) (*Router, error) {
	r := &Router{
		skills: make(map[ID]Skill, len(skills)),
		legacy: legacyModes,
	}
	for _, s := range skills {
		if err := s.validateDefinition(); err != nil {
			return nil, err
		}
		if s.Merge == nil {
			s.Merge = MergeResults
		}
		if s.SchemaVersion == "" {
			s.SchemaVersion = analysis.SchemaVersion
		}
		r.skills[s.ID] = s
	}
	return r, nil
}

// NewDefaultRouter returns a router with the builtin skills
func NewDefaultRouter() *Router {
	r, err := NewRouter(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve picks the skill for a request.
// A registered explicit id wins; otherwise the legacy mode table is consulted.
func (r *Router) Resolve(skillID, legacyMode string) (Skill, error) {
	if id := ID(strings.TrimSpace(skillID)); id != "" {
		if s, ok := r.skills[id]; ok {
			return s, nil
		}
	}
	if mode := strings.ToLower(strings.TrimSpace(legacyMode)); mode != "" {
		if id, ok := r.legacy[mode]; ok {
			if s, ok := r.skills[id]; ok {
				return s, nil
			}
		}
	}

	name := skillID
	if name == "" {
		name = "mode:" + legacyMode
	}
	return Skill{}, errors.NotFound("skill", name)
}

// IDs lists registered skills sorted by id
func (r *Router) IDs() []ID {
	ids := make([]ID, 0, len(r.skills))
	for id := range r.skills {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
