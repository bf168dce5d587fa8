// FILE: logthrottle/src/internal/status/server_test.go
package status

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"logthrottle/src/internal/classify"
	"logthrottle/src/internal/config"
	"logthrottle/src/internal/group"
	"logthrottle/src/internal/tail"
	"logthrottle/src/internal/throttle"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func newMetadataCollector(t *testing.T) (*Collector, *classify.Metadata) {
	t.Helper()
	logger := log.NewLogger()

	registry, err := group.Build([]group.Rule{
		{Namespaces: []string{"kube-system"}, Limit: 100},
	}, time.Second)
	require.NoError(t, err)

	pattern := regexp.MustCompile(`(?P<namespace>[^_/]+)_(?P<pod>[^_/]+)\.log$`)
	classifier, err := classify.NewMetadata(pattern, registry, logger)
	require.NoError(t, err)

	gate := throttle.NewGate(classifier)
	source, err := tail.NewSource(tail.Options{Directory: t.TempDir()}, classifier, gate, logger)
	require.NoError(t, err)

	return NewCollector(config.GroupModeMetadata, classifier, gate, source), classifier
}

func doRequest(s *Server, method, path string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	s.requestHandler(ctx)
	return ctx
}

func TestServer_Status(t *testing.T) {
	collector, classifier := newMetadataCollector(t)
	classifier.Assign("/var/log/kube-system_dns.log")

	s, err := NewServer(config.DefaultStatusConfig(), collector, log.NewLogger())
	require.NoError(t, err)

	ctx := doRequest(s, fasthttp.MethodGet, "/status")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "application/json", string(ctx.Response.Header.ContentType()))

	var body map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &body))

	assert.Equal(t, "logthrottle", body["service"])
	assert.Equal(t, "metadata", body["mode"])
	assert.Contains(t, body, "throttle")
	assert.Contains(t, body, "source")
	assert.Contains(t, body, "classifier")
	assert.NotContains(t, body, "ranking")

	groups, ok := body["groups"].([]any)
	require.True(t, ok)
	require.Len(t, groups, 2, "kube-system/* and */*")

	first := groups[0].(map[string]any)
	assert.Equal(t, "kube-system/*", first["group"])
	assert.Equal(t, float64(100), first["limit"])
	assert.Equal(t, float64(1), first["file_count"])
}

func TestServer_NotFoundAndMethod(t *testing.T) {
	collector, _ := newMetadataCollector(t)
	s, err := NewServer(config.DefaultStatusConfig(), collector, log.NewLogger())
	require.NoError(t, err)

	ctx := doRequest(s, fasthttp.MethodGet, "/other")
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	ctx = doRequest(s, fasthttp.MethodPost, "/status")
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, ctx.Response.StatusCode())
}

func TestCollector_RankingSnapshot(t *testing.T) {
	ranked := group.NewRanked(2, 50, time.Second)
	fallback := group.NewState("default", group.Unlimited, time.Second)
	ranking, err := classify.NewRanking(ranked, fallback, time.Second, nil, log.NewLogger())
	require.NoError(t, err)

	c := NewCollector(config.GroupModeMetric, ranking, nil, nil)
	snap := c.Snapshot()

	assert.Equal(t, "metric", snap["mode"])
	assert.Contains(t, snap, "ranking")
	assert.NotContains(t, snap, "source")
	assert.Len(t, c.Groups(), 2)
	assert.Equal(t, 2, c.Groups()[0]["rank_size"])
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(nil, nil, log.NewLogger())
	assert.Error(t, err)
}
