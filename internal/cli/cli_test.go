package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs a fresh command tree with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDemo_Mock(t *testing.T) {
	out, err := execute(t, "demo", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "Galactic Empire\n  - TIE Fighter\n  - TIE Interceptor\n"+
		"Alliance to Restore the Republic\n  - X-Wing\n  - Y-Wing\n", out)
}

func TestDemo_First(t *testing.T) {
	out, err := execute(t, "demo", "--log-level", "error", "--factions", "rebels", "--first", "3")
	require.NoError(t, err)
	assert.Equal(t, "Alliance to Restore the Republic\n  - X-Wing\n  - Y-Wing\n  - Millennium Falcon\n", out)
}

func TestDemo_ConfigMocks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genrelay.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "error"

mock "factions" {
  argument = "hutts"
  data = {
    id    = "idH"
    name  = "Hutt Clan"
    ships = [{ id = "s9", name = "Khetanna" }]
  }
}
`), 0o600))

	out, err := execute(t, "demo", "--config", path, "--factions", "hutts")
	require.NoError(t, err)
	assert.Equal(t, "Hutt Clan\n  - Khetanna\n", out)
}

func TestDemo_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, strings.HasPrefix(req.Query, "query FactionsQuery("))
		_, _ = w.Write([]byte(`{"data":{"factions":[{"id":"idB","name":"Rebels","ships":[{"id":"s4","name":"X-Wing"}]}]}}`))
	}))
	defer srv.Close()

	out, err := execute(t, "demo", "--log-level", "error", "--endpoint", srv.URL, "--factions", "rebels")
	require.NoError(t, err)
	assert.Equal(t, "Rebels\n  - X-Wing\n", out)
}

func TestDemo_InvalidTransport(t *testing.T) {
	_, err := execute(t, "demo", "--transport", "carrier-pigeon")
	require.ErrorContains(t, err, "carrier-pigeon")
}

func TestPrint(t *testing.T) {
	out, err := execute(t, "print", "--factions", "empire")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "# factions", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "query FactionsQuery($names_0:[String],$first_1:Int){factions(names:$names_0){...F1}}"), lines[1])
	assert.JSONEq(t, `{"names_0":["empire"],"first_1":2}`, lines[2])
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "genrelay version dev"))
}

func TestSchema(t *testing.T) {
	out, err := execute(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "type Faction implements Node")
	assert.Contains(t, out, "ships(first: Int): [Ship]")
}

// startServe runs the serve command on an ephemeral port and returns the
// GraphQL URL. The server stops when the test ends.
func startServe(t *testing.T) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	cmd := newRootCmd()
	cmd.SetOut(pw)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"serve", "--listen", "127.0.0.1:0", "--log-level", "error"})

	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
		pw.Close()
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("serve did not stop")
		}
	})

	line, err := bufio.NewReader(pr).ReadString('\n')
	require.NoError(t, err)
	go func() { _, _ = io.Copy(io.Discard, pr) }()
	addr := strings.TrimSpace(strings.TrimPrefix(line, "listening on "))
	return "http://" + addr + "/graphql"
}

func TestServe(t *testing.T) {
	url := startServe(t)
	resp, err := http.Post(url, "application/json", strings.NewReader(`{"query":"{ factions(names: [\"empire\"]) { name } }"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"factions":[{"name":"Galactic Empire"}]}}`, string(body))
}

func TestDemo_AgainstServe(t *testing.T) {
	url := startServe(t)

	out, err := execute(t, "demo", "--log-level", "error", "--endpoint", url, "--factions", "empire", "--first", "3")
	require.NoError(t, err)
	assert.Equal(t, "Galactic Empire\n  - TIE Fighter\n  - TIE Interceptor\n  - Executor\n", out)

	wsURL := "ws" + strings.TrimPrefix(url, "http")
	out, err = execute(t, "demo", "--log-level", "error", "--endpoint", wsURL, "--transport", "ws", "--factions", "rebels", "--first", "1")
	require.NoError(t, err)
	assert.Equal(t, "Alliance to Restore the Republic\n  - X-Wing\n", out)
}
