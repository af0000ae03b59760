package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/Amund211/mediagate/internal/adapters/upstream"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	t *testing.T

	lock      sync.Mutex
	requests  []upstream.Request
	responses []upstream.Response
	err       error
}

func newFakeDispatcher(t *testing.T, responses ...upstream.Response) *fakeDispatcher {
	return &fakeDispatcher{t: t, responses: responses}
}

func jsonResponse(status int, body string) upstream.Response {
	return upstream.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
	}
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, request upstream.Request) (upstream.Response, error) {
	d.t.Helper()

	d.lock.Lock()
	defer d.lock.Unlock()

	d.requests = append(d.requests, request)
	if d.err != nil {
		return upstream.Response{}, d.err
	}

	require.NotEmpty(d.t, d.responses, "unexpected request to %s", request.URL)
	response := d.responses[0]
	d.responses = d.responses[1:]
	return response, nil
}

func (d *fakeDispatcher) lastRequest() upstream.Request {
	d.t.Helper()

	d.lock.Lock()
	defer d.lock.Unlock()

	require.NotEmpty(d.t, d.requests)
	return d.requests[len(d.requests)-1]
}

type graphQLBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func (d *fakeDispatcher) lastGraphQLBody() graphQLBody {
	d.t.Helper()

	var body graphQLBody
	require.NoError(d.t, json.Unmarshal(d.lastRequest().Body, &body))
	return body
}
