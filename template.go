package officehours

import (
	"text/template"
)

var funcMap = template.FuncMap{
	"join": func(names []string) string {
		switch len(names) {
		case 0:
			return ""
		case 1:
			return names[0]
		}
		s := names[0]
		for _, n := range names[1 : len(names)-1] {
			s += ", " + n
		}
		return s + " and " + names[len(names)-1]
	},
}

func createTemplate(name, tmpl string) *template.Template {
	return template.Must(template.New(name).Funcs(funcMap).Parse(tmpl))
}

var announcements = createTemplate("announcements", `
{{- define "length" -}}
{{if eq .Waiting 1}}There is 1 student waiting for help.{{else}}There are {{.Waiting}} students waiting for help.{{end}}
{{- end -}}

{{- define "queueUpdated" -}}
A new question was added to the queue. {{template "length" .}}
{{- end -}}

{{- define "newStudentHelped" -}}
A teaching assistant is on the way. {{template "length" .}}
{{- end -}}

{{- define "newStudentFinish" -}}
A student has been helped. {{template "length" .}}
{{- end -}}

{{- define "availableTAUpdated" -}}
{{if .Available}}Available teaching assistants: {{join .Available}}.{{else}}No teaching assistants are available right now.{{end}}
{{- end -}}
`)
