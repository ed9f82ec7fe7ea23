package provisioning

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hmdsefi/gograph"

	"github.com/imamik/lbprov/internal/resource"
)

// planNamespace scopes plan identities.
var planNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("lbprov.plan"))

// Step is one entry of a plan.
type Step struct {
	Spec resource.Spec
	// Amend re-resolves the resource of an earlier step with additional
	// references. Amend steps update and never create.
	Amend bool
}

// Edge records that step To consumes the handle produced by step From.
type Edge struct {
	From  int
	To    int
	Field string
}

type planStep struct {
	Step
	// refs maps reference fields left empty in the spec to the kind whose
	// handle fills them at execution time.
	refs map[string]resource.Kind
}

// Plan is a validated, dependency-ordered list of steps. Build it with NewPlan.
type Plan struct {
	name     string
	steps    []planStep
	edges    []Edge
	graph    gograph.Graph[string]
	warnings resource.ValidationErrors
}

// NewPlan applies descriptor defaults to every spec, validates it and
// resolves each empty reference field to the nearest earlier step producing
// the referenced kind. It fails with resource.ValidationErrors when any spec
// is invalid, a required reference has no earlier producer, or a kind is
// produced twice.
func NewPlan(name string, steps ...Step) (*Plan, error) {
	if len(steps) == 0 {
		return nil, resource.ValidationErrors{{Field: "steps", Message: "plan has no steps", Severity: resource.SeverityError}}
	}

	p := &Plan{
		name:  name,
		graph: gograph.New[string](gograph.Acyclic()),
	}
	vertices := make([]*gograph.Vertex[string], len(steps))
	producers := map[resource.Kind]int{}
	var errs resource.ValidationErrors

	fail := func(spec resource.Spec, field, format string, args ...any) {
		errs = append(errs, resource.ValidationError{
			Kind:     spec.Kind(),
			Name:     spec.Name(),
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
			Severity: resource.SeverityError,
		})
	}

	for i, st := range steps {
		spec := resource.ApplyDefaults(st.Spec)
		findings := resource.Validate(spec)
		errs = append(errs, findings.Errors()...)
		p.warnings = append(p.warnings, findings.Warnings()...)

		vertices[i] = p.graph.AddVertexByLabel(stepLabel(i, spec))

		ps := planStep{Step: Step{Spec: spec, Amend: st.Amend}, refs: map[string]resource.Kind{}}

		if st.Amend {
			origin, ok := producers[spec.Kind()]
			if !ok || steps[origin].Spec.Name() != spec.Name() {
				fail(spec, "", "amend step has no earlier step creating %s", spec)
			} else if err := p.addEdge(vertices, origin, i, ""); err != nil {
				fail(spec, "", "%v", err)
			}
		} else if prev, ok := producers[spec.Kind()]; ok {
			fail(spec, "", "duplicate %s step (already produced by step %d)", spec.Kind(), prev+1)
		}

		if desc, err := resource.Lookup(spec.Kind()); err == nil {
			for _, f := range desc.RefFields() {
				if spec.Field(f.Name) != "" {
					continue
				}
				producer, ok := producers[f.Ref]
				if !ok {
					if f.Required {
						fail(spec, f.Name, "references %s but no earlier step produces one", f.Ref)
					}
					continue
				}
				ps.refs[f.Name] = f.Ref
				if err := p.addEdge(vertices, producer, i, f.Name); err != nil {
					fail(spec, f.Name, "%v", err)
				}
			}
		}

		if !st.Amend {
			if _, dup := producers[spec.Kind()]; !dup {
				producers[spec.Kind()] = i
			}
		}
		p.steps = append(p.steps, ps)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return p, nil
}

func (p *Plan) addEdge(vertices []*gograph.Vertex[string], from, to int, field string) error {
	if _, err := p.graph.AddEdge(vertices[from], vertices[to]); err != nil {
		return fmt.Errorf("dependency %s -> %s rejected: %w", vertices[from].Label(), vertices[to].Label(), err)
	}
	p.edges = append(p.edges, Edge{From: from, To: to, Field: field})
	return nil
}

func stepLabel(i int, spec resource.Spec) string {
	return fmt.Sprintf("%d:%s", i, spec.Key())
}

// Name returns the plan name.
func (p *Plan) Name() string { return p.name }

// Len returns the number of steps.
func (p *Plan) Len() int { return len(p.steps) }

// Steps returns the steps in execution order, with defaults applied.
func (p *Plan) Steps() []Step {
	out := make([]Step, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.Step
	}
	return out
}

// Edges returns every dependency between steps, ordered by consumer.
func (p *Plan) Edges() []Edge {
	out := make([]Edge, len(p.edges))
	copy(out, p.edges)
	sort.SliceStable(out, func(i, j int) bool { return out[i].To < out[j].To })
	return out
}

// Dependents returns the indices of the steps consuming the output of step i.
func (p *Plan) Dependents(i int) []int {
	if i < 0 || i >= len(p.steps) {
		return nil
	}
	vertices := p.graph.GetAllVerticesByID(stepLabel(i, p.steps[i].Spec))
	if len(vertices) == 0 {
		return nil
	}
	seen := map[int]bool{}
	var out []int
	for _, e := range p.graph.EdgesOf(vertices[0]) {
		if e.Source().Label() != vertices[0].Label() {
			continue
		}
		var idx int
		if _, err := fmt.Sscanf(e.Destination().Label(), "%d:", &idx); err == nil && !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

// Warnings returns non-fatal validation findings.
func (p *Plan) Warnings() resource.ValidationErrors {
	return p.warnings
}

// Identity is a stable digest of the plan's steps.
func (p *Plan) Identity() string {
	var b strings.Builder
	b.WriteString(p.name)
	for _, s := range p.steps {
		b.WriteString("\n")
		b.WriteString(s.Spec.Key())
		if s.Amend {
			b.WriteString("+amend")
		}
		fields := s.Spec.Fields()
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, fields[k])
		}
	}
	return uuid.NewSHA1(planNamespace, []byte(b.String())).String()
}

// bind returns the spec of step i with reference fields filled from handles.
func (p *Plan) bind(i int, handles Handles) (resource.Spec, error) {
	st := p.steps[i]
	spec := st.Spec
	fields := make([]string, 0, len(st.refs))
	for f := range st.refs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, field := range fields {
		kind := st.refs[field]
		h, ok := handles[kind]
		if !ok || h.Ref == "" {
			return resource.Spec{}, fmt.Errorf("%s needs a %s handle for %s but none was produced", spec, kind, field)
		}
		spec = spec.With(field, h.Ref)
	}
	return spec, nil
}
