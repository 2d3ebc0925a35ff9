package view

import (
	"bytes"
	"html/template"
)

// PasswordPageData provides the dynamic fields required by the password
// entry template.
type PasswordPageData struct {
	Title     string
	Code      string
	VerifyURL string
	Failed    bool
}

var passwordPageTmpl = template.Must(template.New("password_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>{{if .Title}}{{.Title}}{{else}}Protected link{{end}}</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #7dd3fc;
			--accent-strong: #38bdf8;
			--danger: #f87171;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(460px, 92vw);
			box-shadow: 0 45px 100px rgba(0,0,0,0.35);
			backdrop-filter: blur(18px);
		}
		h1 {
			font-size: 1.5rem;
			margin-bottom: 6px;
		}
		p {
			color: var(--muted);
			margin-top: 0;
		}
		input[type="password"] {
			width: 100%;
			margin: 24px 0 8px;
			padding: 14px 18px;
			border-radius: 14px;
			border: 1px solid var(--border);
			background: rgba(125, 211, 252, 0.07);
			color: var(--text);
			font-size: 1rem;
			outline: none;
		}
		input[type="password"]:focus {
			border-color: var(--accent);
		}
		.error {
			color: var(--danger);
			font-size: 0.9rem;
			min-height: 1.2em;
		}
		button {
			display: inline-flex;
			align-items: center;
			justify-content: center;
			padding: 0 28px;
			height: 48px;
			margin-top: 16px;
			border: none;
			border-radius: 999px;
			background: linear-gradient(120deg, var(--accent), var(--accent-strong));
			color: #050708;
			font-weight: 600;
			font-size: 1rem;
			cursor: pointer;
			transition: transform 0.15s ease, opacity 0.15s ease;
		}
		button:hover {
			transform: translateY(-1px);
			opacity: 0.92;
		}
	</style>
</head>
<body>
	<div class="card">
		<h1>This link is protected</h1>
		<p>Enter the password to continue to <strong>/{{.Code}}</strong>.</p>

		<form method="post" action="{{.VerifyURL}}">
			<input type="password" name="password" placeholder="Password" autofocus required />
			<div class="error">{{if .Failed}}Incorrect password, try again.{{end}}</div>
			<button type="submit">Unlock</button>
		</form>
	</div>
</body>
</html>
`))

// RenderPasswordPage expands the password page template with the
// provided data.
func RenderPasswordPage(data PasswordPageData) (string, error) {
	if data.Title == "" {
		data.Title = "Protected link"
	}
	var buf bytes.Buffer
	if err := passwordPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
