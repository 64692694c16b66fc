package preview

import (
	"bytes"
	"fmt"
	"html/template"
)

// html/template escapes every interpolated value for its context: attribute values, text nodes, the
// script string literal and the href URL.
var documentTemplate = template.Must(template.New("preview").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>{{.Title}}</title>
    <meta name="description" content="{{.Description}}" />
    <meta property="og:title" content="{{.OGTitle}}" />
    <meta property="og:description" content="{{.Description}}" />
    <meta property="og:image" content="{{.ImageURL}}" />
    <meta property="og:image:width" content="{{.ImageWidth}}" />
    <meta property="og:image:height" content="{{.ImageHeight}}" />
    <meta property="og:image:alt" content="{{.Name}}" />
    <meta property="og:url" content="{{.PageURL}}" />
    <meta property="og:site_name" content="{{.SiteName}}" />
    <meta property="og:type" content="{{.Type}}" />
    <meta name="twitter:card" content="{{.TwitterCard}}" />
    <meta name="twitter:title" content="{{.OGTitle}}" />
    <meta name="twitter:description" content="{{.Description}}" />
    <meta name="twitter:image" content="{{.ImageURL}}" />
    <link rel="canonical" href="{{.PageURL}}" />
</head>
<body>
    <p>Redirecting to {{.Name}}&#39;s page...</p>
    <script>window.location.replace({{.PageURL}});</script>
    <noscript><a href="{{.PageURL}}">Click here to view {{.Name}}</a></noscript>
</body>
</html>
`))

// Render produces the preview document for m. Output depends only on m.
func Render(m Meta) ([]byte, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, m); err != nil {
		return nil, fmt.Errorf("render preview document: %w", err)
	}
	return buf.Bytes(), nil
}
