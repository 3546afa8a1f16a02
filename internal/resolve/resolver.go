// Package resolve turns raw textual references into store identifiers or
// typed literals: project/user/tag/task names, dates, priorities and
// statuses. Resolution is read-only and deterministic for a given store
// state, clock and context.
package resolve

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"golang.org/x/sync/singleflight"

	"tasknerd/internal/logging"
	"tasknerd/internal/session"
	"tasknerd/internal/types"
)

// Catalog is the read surface the resolver needs from the store.
type Catalog interface {
	ListProjects(ctx context.Context) ([]types.Project, error)
	ListUsers(ctx context.Context, search string) ([]types.User, error)
	ListTags(ctx context.Context) ([]types.Tag, error)
	ListTasks(ctx context.Context, f types.TaskFilter) ([]types.Task, error)
	DefaultUserID() int64
}

// Options configures a Resolver.
type Options struct {
	// Fuzzy threshold is max(MinDistance, floor(len(raw) * DistanceRatio)).
	MinDistance   int
	DistanceRatio float64
	Location      *time.Location
	Now           func() time.Time
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{MinDistance: 1, DistanceRatio: 0.25, Location: time.UTC, Now: time.Now}
}

// Resolver implements reference resolution.
type Resolver struct {
	cat   Catalog
	dates *dateParser
	group singleflight.Group

	mu          sync.RWMutex
	minDistance int
	ratio       float64
}

// New creates a Resolver over cat.
func New(cat Catalog, opts Options) *Resolver {
	return &Resolver{
		cat:         cat,
		dates:       newDateParser(opts.Location, opts.Now),
		minDistance: opts.MinDistance,
		ratio:       opts.DistanceRatio,
	}
}

// SetThresholds updates the fuzzy thresholds (config reload).
func (r *Resolver) SetThresholds(minDistance int, ratio float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minDistance = minDistance
	r.ratio = ratio
}

// threshold returns the maximum accepted edit distance for a query of n runes.
func (r *Resolver) threshold(n int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t := int(math.Floor(float64(n) * r.ratio))
	if t < r.minDistance {
		t = r.minDistance
	}
	return t
}

// Resolve resolves raw as kind. The error is reserved for store failures;
// resolution failures are reported in the entity's Status.
func (r *Resolver) Resolve(ctx context.Context, kind types.EntityKind, raw string, sctx *session.Context) (types.ResolvedEntity, error) {
	timer := logging.StartTimer(logging.CategoryResolver, "Resolve "+string(kind))
	defer timer.Stop()

	var (
		e   types.ResolvedEntity
		err error
	)
	switch kind {
	case types.EntityPriority:
		e = resolvePriority(raw)
	case types.EntityStatus:
		e = resolveStatus(raw)
	case types.EntityDate:
		e = r.dates.resolve(raw)
	case types.EntityTask:
		e, err = r.resolveTask(ctx, raw, sctx)
	case types.EntityProject, types.EntityUser, types.EntityTag:
		e, err = r.resolveNamed(ctx, kind, raw)
	default:
		return types.ResolvedEntity{}, fmt.Errorf("unknown entity kind %q", kind)
	}
	if err != nil {
		return e, err
	}
	logging.ResolverDebug("resolve %s %q -> %s id=%d literal=%q candidates=%d",
		kind, raw, e.Status, e.ID, e.Literal, len(e.Candidates))
	return e, nil
}

// named is one catalog row reduced to what matching needs.
type named struct {
	id   int64
	name string
	alt  string // secondary exact-match key (user email)
}

// load fetches a catalog, collapsing concurrent loads of the same kind.
// The shared load is detached from the first caller's cancellation; each
// caller stops waiting when its own ctx ends.
func (r *Resolver) load(ctx context.Context, kind types.EntityKind) ([]named, error) {
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(string(kind), func() (interface{}, error) {
		return r.fetch(shared, kind)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("failed to load %s catalog: %w", kind, res.Err)
		}
		return res.Val.([]named), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to load %s catalog: %w", kind, ctx.Err())
	}
}

func (r *Resolver) fetch(ctx context.Context, kind types.EntityKind) ([]named, error) {
	var out []named
	switch kind {
	case types.EntityProject:
		ps, err := r.cat.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range ps {
			out = append(out, named{id: p.ID, name: p.Name})
		}
	case types.EntityUser:
		us, err := r.cat.ListUsers(ctx, "")
		if err != nil {
			return nil, err
		}
		for _, u := range us {
			out = append(out, named{id: u.ID, name: u.Username, alt: u.Email})
		}
	case types.EntityTag:
		ts, err := r.cat.ListTags(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range ts {
			out = append(out, named{id: t.ID, name: t.Name})
		}
	case types.EntityTask:
		ts, err := r.cat.ListTasks(ctx, types.TaskFilter{})
		if err != nil {
			return nil, err
		}
		for _, t := range ts {
			out = append(out, named{id: t.ID, name: t.Title})
		}
	}
	return out, nil
}

var idRefRe = regexp.MustCompile(`^(?:#|id\s*#?\s*)(\d+)$`)

// normalizeName lowercases, strips quotes and collapses whitespace.
func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, `"'`+"`‘’“”")
	return strings.Join(strings.Fields(s), " ")
}

// parseIDRef recognizes "#12" and "id 12".
func parseIDRef(q string) (int64, bool) {
	m := idRefRe.FindStringSubmatch(q)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	return id, err == nil
}

func (r *Resolver) resolveNamed(ctx context.Context, kind types.EntityKind, raw string) (types.ResolvedEntity, error) {
	q := normalizeName(raw)
	if kind == types.EntityUser && (q == "me" || q == "myself") {
		return r.byID(ctx, kind, raw, r.cat.DefaultUserID())
	}
	if kind == types.EntityProject {
		q = strings.TrimSuffix(strings.TrimPrefix(q, "project "), " project")
	}
	if _, isID := parseIDRef(q); kind == types.EntityTag && !isID {
		// "#urgent" names the tag "urgent"; "#12" stays an id reference.
		q = strings.TrimPrefix(q, "#")
	}
	items, err := r.load(ctx, kind)
	if err != nil {
		return types.ResolvedEntity{Kind: kind, Raw: raw}, err
	}
	return r.match(kind, raw, q, items), nil
}

func (r *Resolver) byID(ctx context.Context, kind types.EntityKind, raw string, id int64) (types.ResolvedEntity, error) {
	items, err := r.load(ctx, kind)
	if err != nil {
		return types.ResolvedEntity{Kind: kind, Raw: raw}, err
	}
	for _, it := range items {
		if it.id == id {
			return types.ResolvedEntity{Kind: kind, Raw: raw, Status: types.Resolved, ID: it.id, Name: it.name}, nil
		}
	}
	return types.ResolvedEntity{Kind: kind, Raw: raw, Status: types.NotFound}, nil
}

// match applies: id reference, then case-insensitive exact match, then
// containment or bounded edit distance. Ties are ordered by (distance, id).
func (r *Resolver) match(kind types.EntityKind, raw, q string, items []named) types.ResolvedEntity {
	e := types.ResolvedEntity{Kind: kind, Raw: raw, Status: types.NotFound}
	if q == "" {
		return e
	}

	if id, ok := parseIDRef(q); ok {
		for _, it := range items {
			if it.id == id {
				e.Status, e.ID, e.Name = types.Resolved, it.id, it.name
				return e
			}
		}
		return e
	}

	var exact []types.Candidate
	for _, it := range items {
		if normalizeName(it.name) == q || (it.alt != "" && normalizeName(it.alt) == q) {
			exact = append(exact, types.Candidate{ID: it.id, Name: it.name})
		}
	}
	if len(exact) > 0 {
		return settle(e, exact)
	}

	limit := r.threshold(len([]rune(q)))
	var fuzzy []types.Candidate
	for _, it := range items {
		n := normalizeName(it.name)
		d := levenshtein.ComputeDistance(q, n)
		if d <= limit || contains(n, q) {
			fuzzy = append(fuzzy, types.Candidate{ID: it.id, Name: it.name, Distance: d})
		}
	}
	return settle(e, fuzzy)
}

// contains reports containment either way, ignoring very short fragments.
func contains(name, q string) bool {
	const minFragment = 3
	if len(q) >= minFragment && strings.Contains(name, q) {
		return true
	}
	return len(name) >= minFragment && strings.Contains(q, name)
}

func settle(e types.ResolvedEntity, cands []types.Candidate) types.ResolvedEntity {
	switch len(cands) {
	case 0:
		e.Status = types.NotFound
	case 1:
		e.Status, e.ID, e.Name = types.Resolved, cands[0].ID, cands[0].Name
	default:
		sort.SliceStable(cands, func(i, j int) bool {
			if cands[i].Distance != cands[j].Distance {
				return cands[i].Distance < cands[j].Distance
			}
			return cands[i].ID < cands[j].ID
		})
		e.Status = types.Ambiguous
		e.Candidates = cands
	}
	return e
}
