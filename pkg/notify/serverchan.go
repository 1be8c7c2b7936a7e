package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ServerChanNotifier pushes the alert to one ServerChan recipient.
type ServerChanNotifier struct {
	uid      string
	endpoint string
	client   *http.Client
}

// ServerChanEndpoint builds the per-recipient push URL from the uid and
// send key pair.
func ServerChanEndpoint(uid, sendKey string) string {
	return fmt.Sprintf("https://%s.push.ft07.com/send/%s.send", uid, sendKey)
}

// NewServerChanNotifier creates a push notifier posting to endpoint, which
// is normally built with ServerChanEndpoint.
func NewServerChanNotifier(uid, endpoint string) *ServerChanNotifier {
	return &ServerChanNotifier{
		uid:      uid,
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *ServerChanNotifier) Name() string { return "serverchan:" + n.uid }

func (n *ServerChanNotifier) Send(ctx context.Context, alert Alert) error {
	payload := serverChanPayload{
		Title: fmt.Sprintf("Room %s balance low: %.2f", alert.Room, alert.Balance),
		Desp: fmt.Sprintf("**Room**: %s\n\n**Balance**: %.2f\n\n**Threshold**: %.2f\n\n**Checked**: %s",
			alert.Room, alert.Balance, alert.Threshold, alert.At.Format("2006-01-02 15:04:05")),
		Short: fmt.Sprintf("%s: %.2f", alert.Room, alert.Balance),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

type serverChanPayload struct {
	Title string `json:"title"`
	Desp  string `json:"desp,omitempty"`
	Short string `json:"short,omitempty"`
}
