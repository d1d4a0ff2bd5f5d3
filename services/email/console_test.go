package emailsvc

import (
	"net/mail"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-fees/core"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	ResetSentMessages()
	svc := NewConsoleServiceMock(&core.Config{AppName: "Fees"})

	tmpl := template.Must(template.New("t").Parse("Hello {{.}}"))
	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Address: "ada@test.cd"}}, Subject: "hi", TextTemplate: tmpl, TemplateData: "Ada"},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "bob@test.cd"}}, Subject: "empty"},
	)

	sent := SentMessages()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, "Hello Ada", sent[0].TextContent)
	}
	ResetSentMessages()
	assert.Empty(t, SentMessages())
}
