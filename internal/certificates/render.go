package certificates

import (
	"bytes"
	"text/template"
	"time"

	"github.com/localnerve/nodues/internal/models"
	"github.com/localnerve/nodues/internal/registry"
	"github.com/localnerve/nodues/internal/workflow"
)

const certificateText = `NO DUES CERTIFICATE
===================

Registration No : {{.RegistrationNo}}
Application     : {{.ApplicationID}}
Issued          : {{.IssuedAt}}

{{if .Manual}}Cleared by manual review.
{{else}}Cleared by:
{{range .Lines}}  - {{printf "%-24s" .Name}} approved {{.At}}{{if .By}} by {{.By}}{{end}}
{{end}}{{end}}{{if .Reapplications}}
Reapplications  : {{.Reapplications}}
{{end}}`

var tmpl = template.Must(template.New("certificate").Parse(certificateText))

type line struct {
	Name string
	At   string
	By   string
}

type document struct {
	RegistrationNo string
	ApplicationID  string
	IssuedAt       string
	Manual         bool
	Lines          []line
	Reapplications uint
}

// Renderer turns a completed application into the certificate document.
type Renderer struct {
	departments *registry.Registry
	now         func() time.Time
}

// NewRenderer creates a Renderer. departments supplies display names and may be nil.
func NewRenderer(departments *registry.Registry) *Renderer {
	return &Renderer{departments: departments, now: time.Now}
}

// Render produces the plain text certificate for state.
func (r *Renderer) Render(state *workflow.ApplicationState) ([]byte, error) {
	doc := document{
		RegistrationNo: state.RegistrationNo,
		ApplicationID:  state.ID,
		IssuedAt:       r.now().UTC().Format(time.RFC3339),
		Manual:         state.EntryKind == models.EntryManual,
		Reapplications: state.ReapplicationCount,
	}
	for _, a := range state.Approvals {
		l := line{Name: r.displayName(a.Department)}
		if a.ActionAt != nil {
			l.At = a.ActionAt.UTC().Format(time.RFC3339)
		}
		if a.ActionBy != nil {
			l.By = *a.ActionBy
		}
		doc.Lines = append(doc.Lines, l)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Renderer) displayName(name string) string {
	if r.departments == nil {
		return name
	}
	if d, ok := r.departments.Lookup(name); ok && d.DisplayName != "" {
		return d.DisplayName
	}
	return name
}
