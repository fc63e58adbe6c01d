package nexum

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// DiscoveryDocument is the server-provided description of the API surface:
// base and root URLs plus a nested resources/methods tree whose leaves are
// operation specs. It is fetched once per discovery URL and then cached.
type DiscoveryDocument struct {
	Kind        string                        `json:"kind,omitempty"`
	Name        string                        `json:"name,omitempty"`
	Version     string                        `json:"version,omitempty"`
	Title       string                        `json:"title,omitempty"`
	Description string                        `json:"description,omitempty"`
	BaseURL     string                        `json:"baseUrl"`
	RootURL     string                        `json:"rootUrl"`
	Resources   map[string]*DiscoveryResource `json:"resources,omitempty"`
	Methods     map[string]*OperationSpec     `json:"methods,omitempty"`
}

// DiscoveryResource is one node of the nested resources tree.
type DiscoveryResource struct {
	Resources map[string]*DiscoveryResource `json:"resources,omitempty"`
	Methods   map[string]*OperationSpec     `json:"methods,omitempty"`
}

// OperationSpec describes one callable operation.
type OperationSpec struct {
	ID          string                    `json:"id,omitempty"`
	HTTPMethod  string                    `json:"httpMethod"`
	Path        string                    `json:"path"`
	Description string                    `json:"description,omitempty"`
	Parameters  map[string]*ParameterSpec `json:"parameters,omitempty"`
	MediaUpload *MediaUpload              `json:"mediaUpload,omitempty"`
}

// IsUpload reports whether the operation is dispatched through the upload
// path. An operation is either a normal call or an upload, never both.
func (s *OperationSpec) IsUpload() bool {
	return s.MediaUpload != nil
}

// ParameterSpec describes one operation parameter.
type ParameterSpec struct {
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// MediaUpload describes the upload protocol of an upload operation.
type MediaUpload struct {
	Accept    []string        `json:"accept,omitempty"`
	Protocols UploadProtocols `json:"protocols"`
}

// UploadProtocols lists the supported upload protocols.
type UploadProtocols struct {
	Simple *UploadProtocol `json:"simple,omitempty"`
}

// UploadProtocol is one upload protocol variant: an alternate path rooted
// at the document's rootUrl.
type UploadProtocol struct {
	Multipart bool   `json:"multipart,omitempty"`
	Path      string `json:"path"`
}

// NormalizeHost rewrites the host of BaseURL and RootURL to the host of
// baseURL. Multi-tenant deployments serve one discovery document for many
// cells; calls must go to the configured cell, not the one the document
// was published for.
func (d *DiscoveryDocument) NormalizeHost(baseURL string) error {
	target, err := url.Parse(baseURL)
	if err != nil || target.Host == "" {
		return NewConfigError("invalid base URL: %s", baseURL)
	}

	for _, field := range []*string{&d.BaseURL, &d.RootURL} {
		if *field == "" {
			continue
		}

		parsed, err := url.Parse(*field)
		if err != nil {
			return fmt.Errorf("parsing discovery URL %q: %w", *field, err)
		}

		parsed.Host = target.Host
		*field = parsed.String()
	}

	return nil
}

// SplitName normalizes an operation name into its ordered segments. A
// single slash-delimited string and positional segments are equivalent:
// SplitName("user/get") == SplitName("user", "get").
func SplitName(parts ...string) []string {
	if len(parts) == 1 {
		return strings.Split(parts[0], "/")
	}

	return parts
}

// JoinName renders name segments in their canonical slash-joined form.
func JoinName(parts []string) string {
	return strings.Join(parts, "/")
}

// Registry is a flattened lookup table from operation name to spec, built
// once from a discovery document.
type Registry struct {
	ops   map[string]*OperationSpec
	names [][]string
}

// NewRegistry walks the document's resources/methods tree and flattens it.
func NewRegistry(doc *DiscoveryDocument) *Registry {
	reg := &Registry{ops: make(map[string]*OperationSpec)}

	for name, spec := range doc.Methods {
		reg.add([]string{name}, spec)
	}

	var walk func(prefix []string, res *DiscoveryResource)
	walk = func(prefix []string, res *DiscoveryResource) {
		for name, spec := range res.Methods {
			parts := append(append([]string{}, prefix...), name)
			reg.add(parts, spec)
		}

		for name, child := range res.Resources {
			walk(append(append([]string{}, prefix...), name), child)
		}
	}

	for name, res := range doc.Resources {
		walk([]string{name}, res)
	}

	sort.Slice(reg.names, func(i, j int) bool {
		return JoinName(reg.names[i]) < JoinName(reg.names[j])
	})

	return reg
}

func (r *Registry) add(parts []string, spec *OperationSpec) {
	r.ops[JoinName(parts)] = spec
	r.names = append(r.names, parts)
}

// Names returns all registered operation names, sorted.
func (r *Registry) Names() [][]string {
	return r.names
}

// Resolve looks up an operation by name. Unknown names produce an
// EndpointNotFoundError carrying suggestions of near matches.
func (r *Registry) Resolve(parts ...string) (*OperationSpec, error) {
	nameParts := SplitName(parts...)

	spec, ok := r.ops[JoinName(nameParts)]
	if !ok {
		return nil, &EndpointNotFoundError{
			Name:        JoinName(nameParts),
			Suggestions: r.describe(r.Matching(nameParts)),
		}
	}

	return spec, nil
}

// Matching returns registered names that exactly match every given segment
// but the last, and whose segment at the last position starts with the
// last given segment. Used for suggestions on failed lookups.
func (r *Registry) Matching(nameParts []string) [][]string {
	if len(nameParts) == 0 {
		return nil
	}

	idx := len(nameParts) - 1
	last := nameParts[idx]

	var matches [][]string

	for _, candidate := range r.names {
		if len(candidate) <= idx {
			continue
		}

		exact := true

		for i, part := range nameParts[:idx] {
			if candidate[i] != part {
				exact = false

				break
			}
		}

		if exact && strings.HasPrefix(candidate[idx], last) {
			matches = append(matches, candidate)
		}
	}

	return matches
}

// describe renders a name list as an aligned "name  description" block.
func (r *Registry) describe(names [][]string) string {
	if len(names) == 0 {
		return ""
	}

	longest := 0

	for _, name := range names {
		if n := len(JoinName(name)); n > longest {
			longest = n
		}
	}

	lines := make([]string, 0, len(names))

	for _, name := range names {
		descr := r.ops[JoinName(name)].Description
		descr = strings.SplitN(strings.TrimSpace(descr), "\n", 2)[0]
		lines = append(lines, fmt.Sprintf("  %-*s  %s", longest, JoinName(name), descr))
	}

	return strings.Join(lines, "\n")
}

// Help renders a human-readable description of one operation: verb,
// description, and parameter table. POST operations implicitly accept the
// reserved body and fields parameters.
func (r *Registry) Help(parts ...string) (string, error) {
	nameParts := SplitName(parts...)

	spec, err := r.Resolve(nameParts...)
	if err != nil {
		return "", err
	}

	var b strings.Builder

	verb := spec.HTTPMethod
	if verb == "" {
		verb = "?"
	}

	fmt.Fprintf(&b, "%s endpoint: %s\n", verb, JoinName(nameParts))

	if spec.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", strings.TrimSpace(spec.Description))
	}

	params := make(map[string]*ParameterSpec, len(spec.Parameters)+2)

	for name, param := range spec.Parameters {
		params[name] = param
	}

	if verb == "POST" {
		params["body"] = &ParameterSpec{Type: "JSON", Required: true}
		params["fields"] = &ParameterSpec{Type: "JSON"}
	}

	if len(params) == 0 {
		b.WriteString("\nEndpoint takes no parameters\n")

		return b.String(), nil
	}

	b.WriteString("\nParameters (*required):\n")

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		param := params[name]

		required := ""
		if param.Required {
			required = " *"
		}

		fmt.Fprintf(&b, "  %s: %s%s", name, param.Type, required)

		if param.Description != "" {
			fmt.Fprintf(&b, "\n\t%s", strings.TrimSpace(param.Description))
		}

		b.WriteString("\n")
	}

	return b.String(), nil
}
