package notify

import (
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"leadscout/internal/store"
)

var titleCaser = cases.Title(language.English)

const digestTemplateText = `<html>
<body>
<h2>Leadscout digest ({{.Count}} items)</h2>
{{range .Sections}}
<h3>{{.Theme}}</h3>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Source</th><th>Title</th><th>Score</th><th>Status</th><th>Summary</th></tr>
{{range .Rows}}
<tr>
<td>{{.Source}}</td>
<td><a href="{{.URL}}">{{.Title}}</a></td>
<td>{{.Score}}</td>
<td>{{.Status}}</td>
<td>{{.Summary}}</td>
</tr>
{{end}}
</table>
{{end}}
<p>Generated {{.GeneratedAt}}</p>
</body>
</html>`

var digestTemplate = template.Must(template.New("digest").Parse(digestTemplateText))

type digestRow struct {
	Source  string
	Title   string
	URL     string
	Score   string
	Status  string
	Summary string
}

type digestSection struct {
	Theme string
	Rows  []digestRow
}

type digestData struct {
	Count       int
	Sections    []digestSection
	GeneratedAt string
}

// RenderDigest produces the HTML email body, items grouped by theme with
// highest-scoring rows first inside each group.
func RenderDigest(items []*store.Item, now time.Time) (string, error) {
	grouped := make(map[string][]*store.Item)
	for _, item := range items {
		theme := strings.TrimSpace(item.Theme)
		if theme == "" {
			theme = "uncategorized"
		}
		grouped[theme] = append(grouped[theme], item)
	}

	themes := make([]string, 0, len(grouped))
	for theme := range grouped {
		themes = append(themes, theme)
	}
	sort.Strings(themes)

	data := digestData{
		Count:       len(items),
		GeneratedAt: now.UTC().Format(time.RFC1123),
	}
	for _, theme := range themes {
		section := digestSection{Theme: titleCaser.String(theme)}
		rows := grouped[theme]
		sort.SliceStable(rows, func(i, j int) bool {
			return scoreOf(rows[i]) > scoreOf(rows[j])
		})
		for _, item := range rows {
			score := "-"
			if item.RelevanceScore != nil {
				score = fmt.Sprintf("%.1f", *item.RelevanceScore)
			}
			section.Rows = append(section.Rows, digestRow{
				Source:  item.Source,
				Title:   item.Title,
				URL:     item.URL,
				Score:   score,
				Status:  string(item.Status),
				Summary: item.Summary,
			})
		}
		data.Sections = append(data.Sections, section)
	}

	var buf strings.Builder
	if err := digestTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

func scoreOf(item *store.Item) float64 {
	if item.RelevanceScore == nil {
		return -1
	}
	return *item.RelevanceScore
}
