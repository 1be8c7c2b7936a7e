package notify

import (
	"html/template"
	"strings"
)

// rechargeURL is the portal page where the balance can be topped up.
const rechargeURL = "https://eportal.uestc.edu.cn/qljfwapp/sys/lwUestcDormElecPrepaid/index.do"

const alertMailTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="margin:0;padding:0;font-family:-apple-system,'Segoe UI',Roboto,Arial,sans-serif;color:#333;background-color:#f5f5f5;">
  <div style="max-width:600px;margin:20px auto;background:#fff;border-radius:8px;overflow:hidden;">
    <div style="background-color:#3498db;padding:25px;text-align:center;">
      <h1 style="color:#fff;margin:0;font-size:24px;font-weight:500;">Electricity Balance Alert</h1>
    </div>
    <div style="padding:30px;">
      <p style="font-size:16px;line-height:1.6;">
        The prepaid electricity balance of room
        <strong style="color:#3498db;">{{.Room}}</strong> has dropped
        <strong style="color:#e74c3c;">below the alert threshold of {{printf "%.2f" .Threshold}}</strong>.
      </p>
      <div style="margin:30px 0;text-align:center;padding:25px 0;border-top:1px solid #eee;border-bottom:1px solid #eee;">
        <p style="font-size:15px;color:#777;margin:0 0 10px;">Current balance</p>
        <div style="font-size:48px;font-weight:700;color:#e74c3c;">{{printf "%.2f" .Balance}}</div>
      </div>
      <div style="background:#f9f9f9;padding:20px;border-radius:6px;">
        <p style="font-size:15px;margin:0;color:#555;">Please top up soon to avoid a power cut.</p>
      </div>
      <div style="text-align:center;margin:30px 0 20px;">
        <a href="{{.RechargeURL}}" style="background-color:#3498db;color:#fff;text-decoration:none;padding:14px 35px;border-radius:4px;font-size:16px;display:inline-block;">Top up now</a>
      </div>
    </div>
    <div style="background:#f5f5f5;padding:20px;text-align:center;font-size:13px;color:#999;">
      <p style="margin:5px 0;">This message was sent automatically; do not reply.</p>
      <p style="margin:5px 0;">Checked at {{.CheckedAt}}</p>
    </div>
  </div>
</body>
</html>`

var alertMail = template.Must(template.New("alert").Parse(alertMailTemplate))

func renderHTML(alert Alert) (string, error) {
	var b strings.Builder
	err := alertMail.Execute(&b, struct {
		Room        string
		Balance     float64
		Threshold   float64
		CheckedAt   string
		RechargeURL string
	}{
		Room:        alert.Room,
		Balance:     alert.Balance,
		Threshold:   alert.Threshold,
		CheckedAt:   alert.At.Format("2006-01-02 15:04:05"),
		RechargeURL: rechargeURL,
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
