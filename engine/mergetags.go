package engine

import (
	"strings"

	"liquidreach/models"
)

// RenderTemplate substitutes the recognized merge tags with the prospect's
// field values. Unrecognized {{...}} tokens pass through verbatim.
func RenderTemplate(text string, p *models.Prospect) string {
	r := strings.NewReplacer(
		"{{first_name}}", p.FirstName,
		"{{last_name}}", p.LastName,
		"{{company}}", p.Company,
		"{{title}}", p.Title,
		"{{email}}", p.Email,
	)
	return r.Replace(text)
}
