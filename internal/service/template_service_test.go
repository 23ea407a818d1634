package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/smsleopard-sequencer/internal/model"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		want     string
	}{
		{"all placeholders", "Hi {first_name} from {company}", map[string]string{"first_name": "Amina", "company": "Acme"}, "Hi Amina from Acme"},
		{"missing value left as is", "Hi {first_name} {nickname}", map[string]string{"first_name": "Amina"}, "Hi Amina {nickname}"},
		{"empty value", "Hi {first_name}!", map[string]string{"first_name": ""}, "Hi !"},
		{"repeated", "{name} {name}", map[string]string{"name": "x"}, "x x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.template, tt.data))
		})
	}
}

func TestRenderForLead(t *testing.T) {
	l := &model.Lead{Name: "Amina Njeri", Company: "Acme", Status: "qualified"}
	assert.Equal(t, "Hi Amina (Amina Njeri) at Acme, qualified", RenderForLead("Hi {first_name} ({name}) at {company}, {status}", l))
}

func TestRecipientFor(t *testing.T) {
	l := &model.Lead{Phone: "+254700000001", Email: "a@example.com"}
	assert.Equal(t, "a@example.com", recipientFor("email", l))
	assert.Equal(t, "a@example.com", recipientFor("Email", l))
	assert.Equal(t, "+254700000001", recipientFor("whatsapp", l))
	assert.Equal(t, "+254700000001", recipientFor("sms", l))
}
