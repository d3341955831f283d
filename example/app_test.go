package example

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap/zaptest"

	"github.com/pthm/wcx"
	"github.com/pthm/wcx/example/components"
	"github.com/pthm/wcx/lib/config"
)

func newApp(t *testing.T, mutate func(*config.Config)) (*App, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.SecretKey = "0123456789abcdef0123456789abcdef"
	if mutate != nil {
		mutate(cfg)
	}
	app, err := New(context.Background(), cfg, zaptest.NewLogger(t), WithPrometheus(prometheus.NewRegistry()))
	require.NoError(t, err)

	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)
	return app, srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHomePage(t *testing.T) {
	_, srv := newApp(t, nil)

	code, body := get(t, srv.URL+"/")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<title>wcx example</title>")
	assert.Contains(t, body, `user-id="user-1"`)
	assert.Contains(t, body, `class="user-box__name"`)
	assert.Contains(t, body, `<my-component `+wcx.TokenAttr)
	assert.Contains(t, body, `label="Visits"`)
}

func TestCounterPage(t *testing.T) {
	_, srv := newApp(t, nil)

	code, body := get(t, srv.URL+"/counter?label=Hi")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasPrefix(body, "<my-component "), body)
	assert.Contains(t, body, `label="Hi"`)

	code, _ = get(t, srv.URL+"/missing")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPathMapping(t *testing.T) {
	_, srv := newApp(t, func(c *config.Config) { c.URLMapping = "/ui/*" })

	code, body := get(t, srv.URL+"/ui/counter")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<my-component ")

	code, body = get(t, srv.URL+"/ui/_wcx/manifest")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"tag":"user-box"`)

	code, _ = get(t, srv.URL+"/counter")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLazyBoot(t *testing.T) {
	app, srv := newApp(t, func(c *config.Config) { c.LoadOnStartup = false })
	assert.False(t, app.Registry.Initialized())

	code, _ := get(t, srv.URL+"/counter")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, app.Registry.Initialized())
	assert.Equal(t, []string{"/", "/counter"}, app.Routes.Paths())
}

func TestProductionRequiresToken(t *testing.T) {
	_, srv := newApp(t, func(c *config.Config) { c.Production = true })

	code, _ := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = get(t, srv.URL+"/_wcx/manifest")
	assert.Equal(t, http.StatusOK, code)
}

func TestMetricsEndpoint(t *testing.T) {
	_, srv := newApp(t, nil)

	code, body := get(t, srv.URL+MetricsPath)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "wcx_registry_sets_total")
}

var userBoxToken = regexp.MustCompile(`<user-box ` + wcx.TokenAttr + `="([^"]+)"[^>]*user-id="user-1"`)

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + wcx.DefaultPrefix + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(f wcx.Frame) {
	c.t.Helper()
	data, err := msgpack.Marshal(&f)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.BinaryMessage, data))
}

// until reads frames until one with op arrives.
func (c *wsClient) until(op string) wcx.Frame {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := c.conn.ReadMessage()
		require.NoError(c.t, err)
		var f wcx.Frame
		require.NoError(c.t, msgpack.Unmarshal(data, &f))
		if f.Op == op {
			return f
		}
		require.NotEqual(c.t, wcx.OpError, f.Op, "unexpected error frame: %s", f.Err)
	}
}

func TestUserBoxSession(t *testing.T) {
	app, srv := newApp(t, nil)

	_, body := get(t, srv.URL+"/")
	m := userBoxToken.FindStringSubmatch(body)
	require.Len(t, m, 2, "no user-box token in %s", body)

	c := dial(t, srv)
	c.send(wcx.Frame{Op: wcx.OpAttach, Ref: "1", Tag: "user-box", Token: m[1]})
	attached := c.until(wcx.OpAttached)
	assert.Equal(t, "1", attached.Ref)
	require.NotEmpty(t, attached.ID)

	var online bool
	require.NoError(t, msgpack.Unmarshal(attached.Props["online"], &online))
	assert.True(t, online)
	u, ok := app.Directory.Get("user-1")
	require.True(t, ok)
	assert.True(t, u.Online)

	val, err := msgpack.Marshal("Augusta Ada King")
	require.NoError(t, err)
	c.send(wcx.Frame{Op: wcx.OpUpdate, Ref: "2", ID: attached.ID, Prop: "name", Value: val})
	ack := c.until(wcx.OpAck)
	assert.Equal(t, "2", ack.Ref)

	u, _ = app.Directory.Get("user-1")
	assert.Equal(t, "Augusta Ada King", u.Name)

	require.NoError(t, c.conn.Close())
	assert.Eventually(t, func() bool {
		u, _ := app.Directory.Get("user-1")
		return !u.Online
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCounterMilestoneEvent(t *testing.T) {
	_, srv := newApp(t, nil)

	c := dial(t, srv)
	defer c.conn.Close()
	c.send(wcx.Frame{Op: wcx.OpAttach, Ref: "a", Tag: "my-component"})
	attached := c.until(wcx.OpAttached)

	val, err := msgpack.Marshal(10)
	require.NoError(t, err)
	c.send(wcx.Frame{Op: wcx.OpUpdate, ID: attached.ID, Prop: "count", Value: val})

	ev := c.until(wcx.OpEvent)
	assert.Equal(t, "milestone", ev.Prop)
	var detail map[string]int
	require.NoError(t, msgpack.Unmarshal(ev.Value, &detail))
	assert.Equal(t, 10, detail["count"])
}

func TestDirectory(t *testing.T) {
	d := components.NewDirectory()
	require.Len(t, d.List(), 3)

	id := d.Add("Barbara Liskov")
	u, ok := d.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Barbara Liskov", u.Name)

	assert.True(t, d.Rename(id, "B. Liskov"))
	assert.False(t, d.Rename("user-99", "x"))
	assert.True(t, d.SetOnline(id, true))
	u, _ = d.Get(id)
	assert.Equal(t, "B. Liskov", u.Name)
	assert.True(t, u.Online)
}
