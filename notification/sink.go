package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/mmdatafocus/shop_inventory/models"
)

// Alert is one low-stock notification for one recipient.
type Alert struct {
	Recipient   string                   `json:"recipient"`
	Products    []models.CriticalProduct `json:"products"`
	GeneratedAt time.Time                `json:"generatedAt"`
}

// Sink delivers alerts. Send reports failure; callers decide whether it escalates.
type Sink interface {
	Send(ctx context.Context, alert Alert) error
	Name() string
}

func Subject(alert Alert) string {
	if len(alert.Products) == 1 {
		return fmt.Sprintf("Low stock: %s", alert.Products[0].Name)
	}
	return fmt.Sprintf("Low stock: %d products", len(alert.Products))
}

var alertTemplate = template.Must(template.New("alert").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
<h2>Low stock alert</h2>
<p>The following products are at or below their minimum stock as of {{ .GeneratedAt.Format "2006-01-02 15:04" }}.</p>
<table border="1" cellpadding="6" cellspacing="0" style="border-collapse: collapse;">
<thead>
<tr style="background-color: #f2f2f2;"><th>Product</th><th>Current stock</th><th>Minimum stock</th><th>Deficit</th></tr>
</thead>
<tbody>
{{- range .Products }}
<tr><td>{{ .Name }}</td><td>{{ .StockCurrent.String }} {{ .Unit }}</td><td>{{ .StockMinimum.String }}</td><td>{{ .Deficit.String }}</td></tr>
{{- end }}
</tbody>
</table>
</body>
</html>`))

// RenderHTML renders the alert as an HTML table of name, current and minimum stock.
func RenderHTML(alert Alert) (string, error) {
	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, alert); err != nil {
		return "", fmt.Errorf("render alert: %w", err)
	}
	return buf.String(), nil
}
