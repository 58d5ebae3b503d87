package handler

import (
	"bytes"
	"html/template"

	"team-chat/internal/config"
	"team-chat/internal/usecase"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Team Chat</title>
<style>
body { font-family: sans-serif; margin: 0; display: flex; min-height: 100vh; }
aside { width: 18rem; padding: 1rem; background: #f4f4f6; }
main { flex: 1; padding: 1rem 2rem; }
.ok { color: #1b7f3b; }
.missing { color: #b3261e; }
.error { background: #fde7e9; border: 1px solid #b3261e; padding: .5rem; margin: 1rem 0; }
.entry { white-space: pre-wrap; margin: .5rem 0; }
form { display: flex; gap: .5rem; margin: 1rem 0; }
input[type=text] { flex: 1; padding: .4rem; }
</style>
</head>
<body>
<aside>
<h2>Configuration Status</h2>
<ul>
{{- range .Credentials}}
<li class="{{if .Configured}}ok{{else}}missing{{end}}">{{.Label}}: {{if .Configured}}Configured{{with .Source}} ({{.}}){{end}}{{else}}Not Configured{{end}}</li>
{{- end}}
</ul>
{{- if .Agents}}
<h3>Participants</h3>
<ul>
{{- range .Agents}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
</aside>
<main>
<h1>Team Chat</h1>
<p>This chatbot relays your message to a group of agents backed by Azure OpenAI.</p>
{{- if .Error}}
<div class="error">{{.Error}}</div>
{{- end}}
<form method="post" action="/">
<label for="message">Your message:</label>
<input type="text" id="message" name="message" autocomplete="off" autofocus>
<button type="submit">Send</button>
</form>
{{- range .Transcript}}
<div class="entry"><strong>{{.Label}}</strong> {{.Content}}</div>
{{- end}}
</main>
</body>
</html>
`))

type pageEntry struct {
	Label   string
	Content string
}

type pageData struct {
	Credentials []config.CredentialStatus
	Agents      []string
	Transcript  []pageEntry
	Error       string
}

func executePage(view usecase.View, errMsg string) (string, error) {
	data := pageData{
		Credentials: view.Credentials,
		Agents:      view.Agents,
		Error:       errMsg,
		Transcript:  make([]pageEntry, 0, len(view.Transcript)),
	}
	for _, e := range view.Transcript {
		data.Transcript = append(data.Transcript, pageEntry{Label: e.Label(), Content: e.Content})
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
