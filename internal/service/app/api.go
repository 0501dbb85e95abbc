package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"e2e_station/internal/model"
)

type metaResponse struct {
	ID   model.ID    `json:"ID"`
	Meta *model.Meta `json:"meta"`
}

// fetchMeta asks the station for the meta of id ("station" for the
// station itself). A missing meta is returned as nil, nil.
func fetchMeta(ctx context.Context, base *url.URL, id string) (*metaResponse, error) {
	u := url.URL{
		Scheme: base.Scheme,
		Host:   base.Host,
		Path:   fmt.Sprintf("/meta/%s", id),
	}
	if u.Scheme == "ws" {
		u.Scheme = "http"
	} else if u.Scheme == "wss" {
		u.Scheme = "https"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("get meta %s: %s", id, resp.Status)
	}

	var res metaResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	if !res.Meta.Match(res.ID) {
		return nil, fmt.Errorf("get meta %s: meta not match %s", id, res.ID)
	}
	return &res, nil
}

func dialStation(ctx context.Context, base *url.URL) (*websocket.Conn, error) {
	u := url.URL{
		Scheme: base.Scheme,
		Host:   base.Host,
		Path:   "/ws",
	}
	if u.Scheme == "http" {
		u.Scheme = "ws"
	} else if u.Scheme == "https" {
		u.Scheme = "wss"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
