package handler

import (
	"fmt"
	"net/http"
)

// ServeSpec serves the embedded OpenAPI document.
func ServeSpec(spec []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(spec)
	}
}

// ServeDocs renders Swagger UI pointed at specURL.
func ServeDocs(specURL string) http.HandlerFunc {
	page := fmt.Sprintf(docsPage, specURL)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}
}

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Carmart Wallet API</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="docs"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
window.ui = SwaggerUIBundle({ url: %q, dom_id: "#docs", deepLinking: true });
</script>
</body>
</html>`
