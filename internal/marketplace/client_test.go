package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL, Token: "secret", Timeout: time.Second, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

func TestEnsureUserPostsIdentity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/users/", r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 42, body["telegram_id"])
		assert.Equal(t, "client", body["role"])
		assert.Equal(t, "+98912", body["phone_number"])

		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":7,"telegram_id":42,"name":"Sara","role":"client"}`)
	})

	u, err := c.EnsureUser(context.Background(), UserParams{TelegramID: 42, Name: "Sara", Role: RoleClient, Phone: "+98912"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
}

func TestCategoriesKeyedByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":1,"name":"Home","parent":null,"children":[2]},{"id":2,"name":"Plumbing","parent":1,"children":[]}]`)
	})

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Nil(t, cats[1].ParentID)
	require.NotNil(t, cats[2].ParentID)
	assert.Equal(t, int64(1), *cats[2].ParentID)
}

func TestServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Categories(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	c, err := New(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, HTTPClient: srv.Client()})
	require.NoError(t, err)

	_, err = c.Categories(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCreateProjectBudgetValidation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"budget":["Ensure this value is less than or equal to 1000000000."]}`)
	})

	_, err := c.CreateProject(context.Background(), ProjectPayload{Title: "x"})
	require.Error(t, err)
	assert.True(t, IsBudgetError(err))
	assert.False(t, errors.Is(err, ErrUnavailable))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Error(), "budget")
}

func TestCreateProjectOmitsRemoteLocation(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		assert.NotContains(t, string(data), `"location"`)
		assert.Contains(t, string(data), `"service_location":"remote"`)
		_, _ = io.WriteString(w, `{"id":99,"title":"t","status":"open"}`)
	})

	p, err := c.CreateProject(context.Background(), ProjectPayload{Title: "t", ServiceLocation: ServiceRemote})
	require.NoError(t, err)
	assert.Equal(t, int64(99), p.ID)
}

func TestUploadFileMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "photo.jpg", hdr.Filename)
		assert.Equal(t, "jpeg-bytes", string(data))
		assert.Empty(t, r.FormValue("project"))
		_, _ = io.WriteString(w, `{"id":5,"file":"/media/photo.jpg"}`)
	})

	ref, err := c.UploadFile(context.Background(), Upload{Name: "photo.jpg", Content: strings.NewReader("jpeg-bytes")})
	require.NoError(t, err)
	assert.Equal(t, int64(5), ref.ID)
}

func TestListProjectsPaginated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "7", q.Get("user"))
		assert.Equal(t, "-created_at", q.Get("ordering"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "10", q.Get("offset"))
		_, _ = io.WriteString(w, `{"count":11,"results":[{"id":1,"title":"a","status":"open"}]}`)
	})

	list, err := c.ListProjects(context.Background(), ProjectFilter{UserID: 7, Ordering: "-created_at", Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].Title)
}

func TestCreateProjectIsNotResentAfterReset(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if posts.Add(1) == 1 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if !assert.NoError(t, err) {
				return
			}
			if tcp, ok := conn.(*net.TCPConn); ok {
				_ = tcp.SetLinger(0)
			}
			_ = conn.Close()
			return
		}
		_, _ = io.WriteString(w, `{"id":2,"title":"t","status":"open"}`)
	}))
	defer srv.Close()

	// The default client carries the retrying transport.
	c, err := New(Options{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.CreateProject(context.Background(), ProjectPayload{Title: "t"})
	require.Error(t, err)
	assert.Equal(t, int32(1), posts.Load())
}
