package web

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/sweeney/motion-band/internal/status"
)

type pageKind string

const (
	pageForm      pageKind = "form"
	pageError     pageKind = "error"
	pageConnected pageKind = "connected"
	pageFailed    pageKind = "failed"
)

// page is the data every portal page is rendered from.
type page struct {
	Kind          pageKind
	Snapshot      status.Snapshot
	Missing       []string
	Message       string
	SSID          string
	ServerAddress string
}

var pageTmpl = template.Must(template.New("page").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"orUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Motion Band Setup</title>
<style>
body { font-family: monospace; max-width: 480px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
label { display: block; margin-top: 1em; }
input { width: 100%; padding: 6px; box-sizing: border-box; }
button { margin-top: 1.5em; padding: 8px 16px; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.ok { color: green; font-weight: bold; }
.err { color: red; font-weight: bold; }
</style>
</head>
<body>
<h1>Motion Band Setup</h1>
{{if eq .Kind "form"}}{{template "form" .}}
{{else if eq .Kind "error"}}{{template "error" .}}
{{else if eq .Kind "connected"}}{{template "connected" .}}
{{else}}{{template "failed" .}}{{end}}
</body>
</html>
{{define "form"}}
<form method="POST" action="/">
<label for="ssid">WiFi network</label>
<input id="ssid" name="ssid" type="text" required>
<label for="password">Password</label>
<input id="password" name="password" type="password" required>
<label for="server_ip">Data server address</label>
<input id="server_ip" name="server_ip" type="text" placeholder="192.168.1.50" required>
<button type="submit">Connect</button>
</form>
{{with .Snapshot}}
<h2>Device</h2>
<table>
<tr><th>Network</th><td>{{orUnknown (printf "%s" .Network.State)}}{{if .Network.SSID}} ({{.Network.SSID}}){{end}}</td></tr>
<tr><th>Activity</th><td>{{orUnknown (printf "%s" .Activity)}}</td></tr>
<tr><th>Calibrated</th><td>{{if .Motion.Calibrated}}yes{{else}}no{{end}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
</table>
{{end}}
<p><a href="/status.json">JSON</a></p>
{{end}}
{{define "error"}}
<p class="err">The settings were not saved.</p>
{{if .Missing}}<p>Missing: {{range $i, $f := .Missing}}{{if $i}}, {{end}}{{$f}}{{end}}</p>{{end}}
{{if .Missing}}<p>All fields are required. Open networks without a password are not supported.</p>{{end}}
{{if .Message}}<p>{{.Message}}</p>{{end}}
<p><a href="/">Back</a></p>
{{end}}
{{define "connected"}}
<p class="ok">Connected to {{.SSID}}.</p>
<p>Streaming to {{.ServerAddress}}. You can close this page.</p>
{{end}}
{{define "failed"}}
<p class="err">Could not connect to {{.SSID}}.</p>
{{if .Message}}<p>{{.Message}}</p>{{end}}
<p>The settings were saved and will be tried again on the next boot.</p>
<p><a href="/">Try again</a></p>
{{end}}
`

// renderPage executes the template into a buffer so a failure can still
// produce a clean 500.
func renderPage(w http.ResponseWriter, code int, p page) {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, p); err != nil {
		log.Printf("web: render %s: %v", p.Kind, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	buf.WriteTo(w)
}
