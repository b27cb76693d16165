package scope

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/openlgu/badyet/internal/jurisdiction"
)

// fakeDirectory is an in-memory jurisdiction.Directory that counts lookups.
type fakeDirectory struct {
	records []jurisdiction.Jurisdiction
	err     error

	lookupCalls int64
	getCalls    int64
}

func (f *fakeDirectory) LookupByNameAndType(ctx context.Context, names []string, typ jurisdiction.Type) ([]jurisdiction.Jurisdiction, error) {
	atomic.AddInt64(&f.lookupCalls, 1)
	if f.err != nil {
		return nil, f.err
	}
	var out []jurisdiction.Jurisdiction
	for _, j := range f.records {
		if j.Type != typ {
			continue
		}
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(n), j.Name) {
				out = append(out, j)
			}
		}
	}
	return out, nil
}

func (f *fakeDirectory) GetByID(ctx context.Context, id string) (*jurisdiction.Jurisdiction, error) {
	atomic.AddInt64(&f.getCalls, 1)
	if f.err != nil {
		return nil, f.err
	}
	for _, j := range f.records {
		if j.ID == id {
			jj := j
			return &jj, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) PublishedChildren(ctx context.Context, parentID string) ([]jurisdiction.Jurisdiction, error) {
	var out []jurisdiction.Jurisdiction
	for _, j := range f.records {
		if j.ParentID == parentID && j.Published {
			out = append(out, j)
		}
	}
	return out, nil
}

func TestResolveGlobalNoDirectoryCalls(t *testing.T) {
	dir := &fakeDirectory{}
	r := NewResolver(dir, nil)

	res, err := r.Resolve(context.Background(), "How are AIP funds allocated?", ActorContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mode != ModeGlobal {
		t.Errorf("expected global mode, got %s", res.Mode)
	}
	if res.RetrievalScope == nil || res.RetrievalScope.Mode != ModeGlobal {
		t.Errorf("expected global retrieval scope, got %+v", res.RetrievalScope)
	}
	if dir.lookupCalls != 0 || dir.getCalls != 0 {
		t.Errorf("expected zero directory calls, got lookup=%d get=%d", dir.lookupCalls, dir.getCalls)
	}
}

func TestResolveNamedUniqueRoundTrip(t *testing.T) {
	dir := &fakeDirectory{records: []jurisdiction.Jurisdiction{
		{ID: "b1", Name: "San Isidro", Type: jurisdiction.TypeBarangay, Published: true},
	}}
	r := NewResolver(dir, nil)

	res, err := r.Resolve(context.Background(), "What is the 2024 budget of barangay SAN ISIDRO?", ActorContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mode != ModeNamedScopes {
		t.Fatalf("expected named_scopes, got %s (%+v)", res.Mode, res)
	}
	if len(res.ResolvedTargets) != 1 {
		t.Fatalf("expected 1 target, got %+v", res.ResolvedTargets)
	}
	got := res.ResolvedTargets[0]
	if got.ID != "b1" || got.Name != "San Isidro" {
		t.Errorf("expected canonical directory form, got %+v", got)
	}
	if res.RetrievalScope == nil || len(res.RetrievalScope.Targets) != 1 {
		t.Errorf("expected retrieval scope with 1 target, got %+v", res.RetrievalScope)
	}
}

func TestResolveUnresolvedIsHardGate(t *testing.T) {
	dir := &fakeDirectory{}
	r := NewResolver(dir, nil)

	res, err := r.Resolve(context.Background(), "budget of barangay Atlantis?", ActorContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mode != ModeAmbiguous {
		t.Errorf("expected ambiguous, got %s", res.Mode)
	}
	if res.RetrievalScope != nil {
		t.Errorf("expected nil retrieval scope, got %+v", res.RetrievalScope)
	}
	if len(res.UnresolvedScopes) != 1 {
		t.Errorf("expected 1 unresolved scope, got %+v", res.UnresolvedScopes)
	}
	if res.ClarificationMessage == "" {
		t.Error("expected a clarification message")
	}
}

func TestResolveAmbiguousCandidateCount(t *testing.T) {
	dir := &fakeDirectory{records: []jurisdiction.Jurisdiction{
		{ID: "b1", Name: "Poblacion", Type: jurisdiction.TypeBarangay, Published: true},
		{ID: "b2", Name: "Poblacion", Type: jurisdiction.TypeBarangay, Published: true},
	}}
	r := NewResolver(dir, nil)

	res, err := r.Resolve(context.Background(), "projects of barangay Poblacion", ActorContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mode != ModeAmbiguous {
		t.Fatalf("expected ambiguous, got %s", res.Mode)
	}
	if len(res.AmbiguousScopes) != 1 || res.AmbiguousScopes[0].CandidateCount != 2 {
		t.Errorf("expected one ambiguous scope with 2 candidates, got %+v", res.AmbiguousScopes)
	}
	if res.RetrievalScope != nil {
		t.Error("ambiguous resolution must not carry a retrieval scope")
	}
}

func TestResolvePartialResolutionStillAmbiguous(t *testing.T) {
	dir := &fakeDirectory{records: []jurisdiction.Jurisdiction{
		{ID: "b1", Name: "San Isidro", Type: jurisdiction.TypeBarangay, Published: true},
	}}
	r := NewResolver(dir, nil)

	res, err := r.Resolve(context.Background(), "compare barangay San Isidro and barangay Atlantis", ActorContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mode != ModeAmbiguous {
		t.Errorf("partial resolution must be ambiguous, got %s", res.Mode)
	}
	if res.RetrievalScope != nil {
		t.Error("expected nil retrieval scope")
	}
}

func TestResolveOwnBarangay(t *testing.T) {
	dir := &fakeDirectory{records: []jurisdiction.Jurisdiction{
		{ID: "b7", Name: "Mabini", Type: jurisdiction.TypeBarangay, Published: true},
	}}
	r := NewResolver(dir, nil)

	res, err := r.Resolve(context.Background(), "What is the budget of our barangay?", ActorContext{BarangayID: "b7"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mode != ModeOwnBarangay {
		t.Fatalf("expected own_barangay, got %s", res.Mode)
	}
	if len(res.ResolvedTargets) != 1 || res.ResolvedTargets[0].Name != "Mabini" {
		t.Errorf("expected Mabini target, got %+v", res.ResolvedTargets)
	}
}

func TestResolveOwnBarangayPlaceholderName(t *testing.T) {
	dir := &fakeDirectory{}
	r := NewResolver(dir, nil)

	res, err := r.Resolve(context.Background(), "magkano ang pondo sa aming barangay?", ActorContext{BarangayID: "b9"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mode != ModeOwnBarangay {
		t.Fatalf("expected own_barangay, got %s", res.Mode)
	}
	if res.ResolvedTargets[0].Name != ownBarangayPlaceholder {
		t.Errorf("expected placeholder name, got %q", res.ResolvedTargets[0].Name)
	}
	if res.ResolvedTargets[0].ID != "b9" {
		t.Errorf("id must still be the actor's barangay, got %q", res.ResolvedTargets[0].ID)
	}
}

func TestResolveOwnCueWithoutActorBarangayIsGlobal(t *testing.T) {
	dir := &fakeDirectory{}
	r := NewResolver(dir, nil)

	res, err := r.Resolve(context.Background(), "What is the budget of our barangay?", ActorContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mode != ModeGlobal {
		t.Errorf("expected global, got %s", res.Mode)
	}
}

func TestResolveDirectoryErrorPropagates(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("directory down")}
	r := NewResolver(dir, nil)

	_, err := r.Resolve(context.Background(), "budget of barangay San Isidro", ActorContext{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestResolveDeduplicatesTargets(t *testing.T) {
	dir := &fakeDirectory{records: []jurisdiction.Jurisdiction{
		{ID: "b1", Name: "San Isidro", Type: jurisdiction.TypeBarangay, Published: true},
	}}
	r := NewResolver(dir, nil)

	res, err := r.Resolve(context.Background(), "barangay San Isidro vs barangay SAN ISIDRO", ActorContext{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mode != ModeNamedScopes || len(res.ResolvedTargets) != 1 {
		t.Errorf("expected 1 deduplicated target, got %+v", res)
	}
}
