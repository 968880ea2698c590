// Package render turns assembled results into Markdown for text surfaces.
package render

import (
	"fmt"
	"strings"

	"github.com/kirillkom/foia-search/internal/core/domain"
)

var markdownStripper = strings.NewReplacer(
	`\`, "", "`", "", "*", "", "_", "",
	"{", "", "}", "", "#", "", "+", "", "$", "", "\t", "",
)

// EscapeMarkdown removes characters that carry Markdown meaning.
func EscapeMarkdown(text string) string {
	return markdownStripper.Replace(text)
}

// Markdown renders one result: present metadata fields, the body, then page images.
func Markdown(r domain.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %d. %s\n\n", r.Rank, EscapeMarkdown(title(r)))

	for _, field := range r.Metadata {
		values := make([]string, 0, len(field.Values))
		for _, v := range field.Values {
			values = append(values, EscapeMarkdown(v))
		}
		fmt.Fprintf(&b, "%s: **%s**  \n", field.Key, strings.Join(values, ", "))
	}
	if len(r.Metadata) > 0 {
		b.WriteString("\n")
	}

	if body := strings.TrimSpace(r.Content); body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}

	for _, img := range r.Images {
		fmt.Fprintf(&b, "![%s](%s)  \n*%s*\n\n", img.Title, img.URL, img.Caption)
	}
	if r.ArchiveURL != "" {
		fmt.Fprintf(&b, "[View in archive](%s)\n\n", r.ArchiveURL)
	}
	return b.String()
}

// Results renders a whole response. An empty result set renders a short notice.
func Results(resp *domain.SearchResponse) string {
	if resp == nil || len(resp.Results) == 0 {
		if resp != nil && strings.TrimSpace(resp.Query) == "" {
			return ""
		}
		return "No matching emails.\n"
	}

	var b strings.Builder
	for i, r := range resp.Results {
		if i > 0 {
			b.WriteString("---\n\n")
		}
		b.WriteString(Markdown(r))
	}
	return b.String()
}

func title(r domain.Result) string {
	for _, field := range r.Metadata {
		if field.Key == domain.FieldSubject && len(field.Values) > 0 {
			return field.Values[0]
		}
	}
	return r.ID
}
