package scope

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/openlgu/badyet/internal/jurisdiction"
)

// ActorContext identifies the asking citizen for own-jurisdiction resolution.
type ActorContext struct {
	// BarangayID is the citizen's registered barangay, empty if none.
	BarangayID string
}

// Resolver turns parsed scope cues into a verified retrieval scope.
type Resolver struct {
	dir       jurisdiction.Directory
	extractor CueExtractor
}

// NewResolver creates a resolver over the given directory. A nil extractor
// defaults to the regex extractor.
func NewResolver(dir jurisdiction.Directory, extractor CueExtractor) *Resolver {
	if extractor == nil {
		extractor = NewRegexExtractor()
	}
	return &Resolver{dir: dir, extractor: extractor}
}

// ownBarangayPlaceholder is used when the actor's barangay record cannot be
// read; the id is still trusted for filtering.
const ownBarangayPlaceholder = "your barangay"

// Resolve parses the question's scope cues and verifies them against the
// jurisdiction directory. Ambiguous or unresolved mentions are a hard gate:
// the resolution carries no retrieval scope and retrieval must not proceed.
func (r *Resolver) Resolve(ctx context.Context, question string, actor ActorContext) (*Resolution, error) {
	cues := r.extractor.Extract(question)

	if len(cues.RequestedScopes) > 0 {
		return r.resolveNamed(ctx, cues.RequestedScopes)
	}

	if cues.HasOwnJurisdictionCue && actor.BarangayID != "" {
		return r.resolveOwn(ctx, actor.BarangayID)
	}

	return &Resolution{
		Mode:           ModeGlobal,
		RetrievalScope: &RetrievalScope{Mode: ModeGlobal},
	}, nil
}

func (r *Resolver) resolveNamed(ctx context.Context, requested []Cue) (*Resolution, error) {
	res := &Resolution{RequestedScopes: requested}

	// Group cue names by type, then fan out one batch lookup per type.
	byType := map[jurisdiction.Type][]string{}
	for _, c := range requested {
		byType[c.Type] = append(byType[c.Type], c.Name)
	}

	matches := map[jurisdiction.Type]map[string][]jurisdiction.Jurisdiction{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	errs := make([]error, 0, len(byType))

	for typ, names := range byType {
		wg.Add(1)
		go func(typ jurisdiction.Type, names []string) {
			defer wg.Done()
			found, err := r.dir.LookupByNameAndType(ctx, names, typ)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("looking up %s names: %w", typ, err))
				return
			}
			m := map[string][]jurisdiction.Jurisdiction{}
			for _, j := range found {
				key := strings.ToLower(j.Name)
				m[key] = append(m[key], j)
			}
			matches[typ] = m
		}(typ, names)
	}
	wg.Wait()

	if len(errs) > 0 {
		return nil, errs[0]
	}

	seen := map[string]bool{}
	for _, cue := range requested {
		candidates := matches[cue.Type][strings.ToLower(cue.Name)]
		switch len(candidates) {
		case 0:
			res.UnresolvedScopes = append(res.UnresolvedScopes, cue)
		case 1:
			j := candidates[0]
			key := string(j.Type) + "\x00" + j.ID
			if seen[key] {
				continue
			}
			seen[key] = true
			res.ResolvedTargets = append(res.ResolvedTargets, Target{Type: j.Type, ID: j.ID, Name: j.Name})
		default:
			res.AmbiguousScopes = append(res.AmbiguousScopes, AmbiguousCue{Cue: cue, CandidateCount: len(candidates)})
		}
	}

	if len(res.UnresolvedScopes) > 0 || len(res.AmbiguousScopes) > 0 || len(res.ResolvedTargets) == 0 {
		res.Mode = ModeAmbiguous
		res.ClarificationMessage = buildScopeClarification(res)
		return res, nil
	}

	res.Mode = ModeNamedScopes
	res.RetrievalScope = &RetrievalScope{Mode: ModeNamedScopes, Targets: res.ResolvedTargets}
	return res, nil
}

func (r *Resolver) resolveOwn(ctx context.Context, barangayID string) (*Resolution, error) {
	name := ownBarangayPlaceholder
	j, err := r.dir.GetByID(ctx, barangayID)
	if err == nil && j != nil {
		name = j.Name
	} else if err != nil {
		return nil, fmt.Errorf("resolving own barangay %s: %w", barangayID, err)
	}

	target := Target{Type: jurisdiction.TypeBarangay, ID: barangayID, Name: name}
	return &Resolution{
		Mode:            ModeOwnBarangay,
		ResolvedTargets: []Target{target},
		RetrievalScope:  &RetrievalScope{Mode: ModeOwnBarangay, Targets: []Target{target}},
	}, nil
}

func buildScopeClarification(res *Resolution) string {
	var parts []string
	if len(res.UnresolvedScopes) > 0 {
		names := make([]string, len(res.UnresolvedScopes))
		for i, c := range res.UnresolvedScopes {
			names[i] = fmt.Sprintf("%s %q", c.Type, c.Name)
		}
		parts = append(parts, "I couldn't find "+strings.Join(names, ", ")+" in the directory")
	}
	if len(res.AmbiguousScopes) > 0 {
		names := make([]string, len(res.AmbiguousScopes))
		for i, c := range res.AmbiguousScopes {
			names[i] = fmt.Sprintf("%q matches %d %ss", c.Name, c.CandidateCount, c.Type)
		}
		parts = append(parts, strings.Join(names, ", "))
	}
	msg := "I couldn't pin down the jurisdiction you mean"
	if len(parts) > 0 {
		msg = strings.Join(parts, "; ")
	}
	return msg + ". Please name the exact barangay, city, or municipality (for example \"Barangay San Isidro, Santa Rosa City\")."
}
