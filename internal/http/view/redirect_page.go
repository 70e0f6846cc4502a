package view

import (
	"bytes"
	"html/template"
)

// RedirectPageData provides the dynamic fields required by the interstitial.
type RedirectPageData struct {
	Title string
	Code  string
	// ClickoutURL is POSTed before leaving; its redirectUrl wins over FallbackURL.
	ClickoutURL string
	FallbackURL string
	// DelayMillis keeps the page visible briefly; 0 means 600ms.
	DelayMillis int
}

// NotFoundPageData feeds the missing link page.
type NotFoundPageData struct {
	Code string
}

const pageStyle = `
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #fbbf24;
			--accent-strong: #f59e0b;
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
			width: min(520px, 92vw);
			box-shadow: 0 45px 100px rgba(0,0,0,0.35);
			text-align: center;
		}
		p { color: var(--muted); }
		.spinner {
			width: 36px;
			height: 36px;
			margin: 18px auto;
			border: 3px solid var(--border);
			border-top-color: var(--accent);
			border-radius: 50%;
			animation: spin 0.9s linear infinite;
		}
		@keyframes spin { to { transform: rotate(360deg); } }
		a.button {
			display: inline-flex;
			align-items: center;
			justify-content: center;
			padding: 0 28px;
			height: 44px;
			border-radius: 999px;
			background: linear-gradient(120deg, var(--accent), var(--accent-strong));
			color: #050708;
			font-weight: 600;
			text-decoration: none;
		}
	</style>`

var redirectPageTmpl = template.Must(template.New("redirect_page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="robots" content="noindex" />
	<title>{{.Title}}</title>
` + pageStyle + `
</head>
<body>
	<div class="card">
		<h1>Taking you to the deal</h1>
		<div class="spinner"></div>
		<p>If nothing happens, <a id="cta" href="{{.FallbackURL}}">continue to Amazon</a>.</p>
	</div>
	<script>
		(function() {
			const clickout = {{.ClickoutURL}};
			const fallback = {{.FallbackURL}};
			const delay = {{.DelayMillis}};
			const go = (target) => setTimeout(() => window.location.replace(target || fallback), delay);

			fetch(clickout, { method: "POST", credentials: "omit" })
				.then((resp) => resp.ok ? resp.json() : {})
				.then((body) => go(body.redirectUrl))
				.catch(() => go(fallback));
		})();
	</script>
</body>
</html>
`))

var notFoundPageTmpl = template.Must(template.New("not_found_page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="robots" content="noindex" />
	<title>Link not found</title>
` + pageStyle + `
</head>
<body>
	<div class="card">
		<h1>Link not found or expired</h1>
		<p>{{if .Code}}The short link <strong>/r/{{.Code}}</strong> does not exist.{{else}}This short link does not exist.{{end}}</p>
	</div>
</body>
</html>
`))

// RenderRedirectPage expands the interstitial template with the provided data.
func RenderRedirectPage(data RedirectPageData) (string, error) {
	if data.Title == "" {
		data.Title = "Redirecting..."
	}
	if data.DelayMillis <= 0 {
		data.DelayMillis = 600
	}
	var buf bytes.Buffer
	if err := redirectPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderNotFoundPage renders the page shown for unknown short codes.
func RenderNotFoundPage(data NotFoundPageData) (string, error) {
	var buf bytes.Buffer
	if err := notFoundPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
