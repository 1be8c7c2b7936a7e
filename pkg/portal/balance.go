package portal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const infoPath = "/qljfwapp/sys/lwUestcDormElecPrepaid/dormElecPrepaidMan/queryRoomInfo.do"

// Reading is one fetched balance figure for one room. It is consumed
// immediately by evaluation and not persisted.
type Reading struct {
	Room    string
	Balance float64
	At      time.Time
}

// Fetcher retrieves per-room balances using a borrowed Session.
type Fetcher struct {
	infoURL string
}

// NewFetcher creates a balance fetcher against the given portal base URL.
func NewFetcher(portalURL string) *Fetcher {
	return &Fetcher{infoURL: portalURL + infoPath}
}

// The balance API answers with an array of room envelopes. Field types are
// loose (numbers arrive as strings on some portal releases), so everything
// is decoded defensively.
type roomEnvelope struct {
	RoomInfo roomInfo `json:"roomInfo"`
}

type roomInfo struct {
	Retcode  json.Number     `json:"retcode"`
	RoomName string          `json:"roomName"`
	Balance  json.RawMessage `json:"syje"`
}

// FetchBalance queries the prepaid-power API for one room. An auth-class
// rejection surfaces ErrAuthExpired so the caller can re-authenticate once;
// any malformed response surfaces ErrQuery and skips the room.
func (f *Fetcher) FetchBalance(ctx context.Context, sess *Session, roomID string) (Reading, error) {
	form := url.Values{
		"roomIds": {fmt.Sprintf(`[{"DORM_ID":%q}]`, roomID)},
	}

	resp, err := sess.postForm(ctx, f.infoURL, form)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: room %s: %v", ErrQuery, roomID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return Reading{}, fmt.Errorf("%w: room %s: status 401", ErrAuthExpired, roomID)
	case isRedirect(resp.StatusCode):
		// Expired sessions are bounced back to the login flow.
		return Reading{}, fmt.Errorf("%w: room %s: redirected to login", ErrAuthExpired, roomID)
	case resp.StatusCode != http.StatusOK:
		return Reading{}, fmt.Errorf("%w: room %s: status %d", ErrQuery, roomID, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		return Reading{}, fmt.Errorf("%w: room %s: got a login page instead of JSON", ErrAuthExpired, roomID)
	}

	var envelopes []roomEnvelope
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&envelopes); err != nil {
		return Reading{}, fmt.Errorf("%w: room %s: decode response: %v", ErrQuery, roomID, err)
	}
	if len(envelopes) == 0 {
		return Reading{}, fmt.Errorf("%w: room %s: empty response", ErrQuery, roomID)
	}

	info := envelopes[0].RoomInfo
	if info.Retcode.String() != "0" {
		return Reading{}, fmt.Errorf("%w: room %s: retcode %s", ErrQuery, roomID, info.Retcode)
	}

	balance, err := parseBalance(info.Balance)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: room %s: %v", ErrQuery, roomID, err)
	}

	return Reading{Room: roomID, Balance: balance, At: time.Now()}, nil
}

// parseBalance accepts the syje field as either a JSON string or a number.
func parseBalance(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("response carries no balance field")
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("balance %q is not numeric", s)
		}
		return v, nil
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("balance %s is not numeric", raw)
	}
	return v, nil
}
