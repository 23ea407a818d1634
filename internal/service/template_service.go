// internal/service/template_service.go
package service

import (
	"strings"

	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// LeadPlaceholders are the values message bodies may reference.
func LeadPlaceholders(l *model.Lead) map[string]string {
	return map[string]string{
		"name":       l.Name,
		"first_name": l.FirstName(),
		"company":    l.Company,
		"email":      l.Email,
		"phone":      l.Phone,
		"status":     l.Status,
		"source":     l.Source,
	}
}

func RenderForLead(template string, l *model.Lead) string {
	return RenderTemplate(template, LeadPlaceholders(l))
}

// recipientFor picks the lead address the channel delivers to.
func recipientFor(channel string, l *model.Lead) string {
	if strings.EqualFold(channel, "email") {
		return l.Email
	}
	return l.Phone
}
