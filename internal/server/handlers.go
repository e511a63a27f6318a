package server

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/stacksolve/pkg/buildinfo"
	"github.com/matzehuels/stacksolve/pkg/errors"
	"github.com/matzehuels/stacksolve/pkg/facts"
	"github.com/matzehuels/stacksolve/pkg/pipeline"
	"github.com/matzehuels/stacksolve/pkg/splice"
)

// =============================================================================
// Responses
// =============================================================================

type concretizeResponse struct {
	SolutionKey string             `json:"solution_key"`
	Roots       []string           `json:"roots"`
	Lock        json.RawMessage    `json:"lock"`
	Artifacts   map[string]any     `json:"artifacts,omitempty"`
	Splices     []splice.Decision  `json:"splices,omitempty"`
	Stats       statsView          `json:"stats"`
	Cache       pipeline.CacheInfo `json:"cache"`
}

type statsView struct {
	Nodes    int     `json:"nodes"`
	Reused   int     `json:"reused"`
	Excluded int     `json:"excluded"`
	Steps    int     `json:"steps"`
	Optimal  bool    `json:"optimal"`
	SolveMS  float64 `json:"solve_ms"`
}

type packageView struct {
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Versions      []versionView    `json:"versions"`
	Variants      []variantView    `json:"variants,omitempty"`
	Dependencies  []dependencyView `json:"dependencies,omitempty"`
	Provides      []string         `json:"provides,omitempty"`
	MultiInstance bool             `json:"multi_instance,omitempty"`
}

type versionView struct {
	Version    string `json:"version"`
	Preferred  bool   `json:"preferred,omitempty"`
	Deprecated bool   `json:"deprecated,omitempty"`
}

type variantView struct {
	Name    string   `json:"name"`
	Default []string `json:"default"`
	Values  []string `json:"values,omitempty"`
	When    string   `json:"when,omitempty"`
}

type dependencyView struct {
	Spec  string `json:"spec"`
	Types string `json:"types"`
	When  string `json:"when,omitempty"`
}

type errorBody struct {
	Error struct {
		Code    errors.Code `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildinfo.Get())
}

func (s *Server) handleConcretize(w http.ResponseWriter, r *http.Request) {
	opts := s.base
	opts.Logger = s.logger.With("request_id", RequestID(r.Context()))
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	if !slices.Contains(opts.Formats, pipeline.FormatJSON) {
		opts.Formats = append(slices.Clone(opts.Formats), pipeline.FormatJSON)
	}

	res, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := concretizeResponse{
		SolutionKey: res.SolutionKey,
		Lock:        res.Artifacts[pipeline.FormatJSON],
		Splices:     res.Splices,
		Cache:       res.CacheInfo,
		Stats: statsView{
			Nodes:    res.Stats.NodeCount,
			Reused:   res.Stats.ReusedCount,
			Excluded: res.Stats.Excluded,
			Steps:    res.Stats.Steps,
			Optimal:  res.Solution.Optimal,
			SolveMS:  float64(res.Stats.SolveTime.Microseconds()) / 1000,
		},
	}
	for _, root := range res.Solution.Roots {
		out.Roots = append(out.Roots, root.Hash)
	}
	for format, data := range res.Artifacts {
		switch format {
		case pipeline.FormatJSON:
		case pipeline.FormatGraph:
			out.artifact(format, json.RawMessage(data))
		case pipeline.FormatPNG, pipeline.FormatPDF:
			out.artifact(format, data) // base64 in JSON
		default:
			out.artifact(format, string(data))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (o *concretizeResponse) artifact(format string, v any) {
	if o.Artifacts == nil {
		o.Artifacts = make(map[string]any)
	}
	o.Artifacts[format] = v
}

func (s *Server) handlePackages(w http.ResponseWriter, r *http.Request) {
	table, _, err := s.runner.Facts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"packages": table.Names(),
		"virtuals": table.Virtuals(),
	})
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := errors.ValidatePackageName(name); err != nil {
		s.writeError(w, r, err)
		return
	}
	table, _, err := s.runner.Facts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if bad, ok := table.ExcludedError(name); ok {
		s.writeError(w, r, bad)
		return
	}
	pkg, ok := table.Package(name)
	if !ok {
		if table.IsVirtual(name) {
			writeJSON(w, http.StatusOK, map[string]any{
				"name":      name,
				"virtual":   true,
				"providers": table.Providers(name),
			})
			return
		}
		s.writeError(w, r, errors.New(errors.ErrCodePackageNotFound, "unknown package %q", name))
		return
	}
	writeJSON(w, http.StatusOK, newPackageView(pkg))
}

func newPackageView(p *facts.PackageFacts) packageView {
	v := packageView{
		Name:          p.Name,
		Description:   p.Description,
		Provides:      p.Virtuals(),
		MultiInstance: p.MultiInstance,
	}
	for _, ver := range p.Versions {
		v.Versions = append(v.Versions, versionView{
			Version:    ver.Version.String(),
			Preferred:  ver.Preferred,
			Deprecated: ver.Deprecated,
		})
	}
	for _, vr := range p.Variants {
		view := variantView{Name: vr.Name, Default: vr.Default, Values: vr.Values}
		if !vr.When.IsAlways() {
			view.When = vr.When.String()
		}
		v.Variants = append(v.Variants, view)
	}
	for _, d := range p.Dependencies {
		view := dependencyView{Spec: d.Spec.String(), Types: d.Types.String()}
		if !d.When.IsAlways() {
			view.When = d.When.String()
		}
		v.Dependencies = append(v.Dependencies, view)
	}
	return v
}

// =============================================================================
// Helpers
// =============================================================================

// statusFor maps an error code onto an HTTP status.
func statusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidSpec, errors.ErrCodeInvalidVersion,
		errors.ErrCodeInvalidPackage, errors.ErrCodeInvalidPolicy, errors.ErrCodeInvalidFormat,
		errors.ErrCodeInvalidPath, errors.ErrCodeAmbiguousSpec:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodePackageNotFound, errors.ErrCodeFileNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnsatisfiable, errors.ErrCodeMalformedPackage, errors.ErrCodeAmbiguousSplice:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "id", RequestID(r.Context()), "error", err)
	}

	var body errorBody
	body.Error.Code = code
	body.Error.Message = errors.UserMessage(err)
	body.RequestID = RequestID(r.Context())
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
