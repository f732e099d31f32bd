package mailer

import (
	"bytes"
	"html/template"
	"strings"
)

const confirmationSubject = "Confirmación de pago"

var confirmationHTML = template.Must(template.New("confirmation").Parse(
	`<h2>Hola {{.Name}}</h2>
<p>Tu pago se ha procesado con éxito.</p>
<p><strong>Pedido:</strong> #{{.OrderID}}</p>
`))

// Confirmation builds the payment confirmation for one recipient. The name
// is HTML-escaped; an empty name falls back to a generic greeting.
func Confirmation(from, fromName, to, name, orderID string) (Email, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "cliente"
	}
	var html bytes.Buffer
	if err := confirmationHTML.Execute(&html, struct{ Name, OrderID string }{name, orderID}); err != nil {
		return Email{}, err
	}
	return Email{
		FromName: fromName,
		From:     from,
		To:       []string{to},
		Subject:  confirmationSubject,
		TextBody: "Hola " + name + ",\n\nTu pago se ha procesado con éxito.\nPedido: #" + orderID + "\n",
		HTMLBody: html.String(),
		Headers:  map[string]string{"X-Order-ID": orderID},
	}, nil
}
