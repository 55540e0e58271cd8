package router_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/wirehttp/core/handler"
	"github.com/dmitrymomot/wirehttp/core/router"
)

func named(name string) handler.HandlerFunc {
	return func(c *handler.Context) error {
		c.SetBodyString(name)
		return nil
	}
}

func TestTableSpecificityOrder(t *testing.T) {
	t.Parallel()

	var tbl router.Table
	tbl.Add("/:a/:b", http.MethodGet, named("dyn-dyn"))
	tbl.Add("/users/:id", http.MethodGet, named("users-id"))
	tbl.Add("/users/profile", http.MethodGet, named("users-profile"))
	tbl.Add("/users/:id/posts", http.MethodGet, named("users-id-posts"))

	assert.Equal(t,
		[]string{"/users/profile", "/users/:id/posts", "/users/:id", "/:a/:b"},
		tbl.Templates())
}

func TestTableLiteralBeatsDynamic(t *testing.T) {
	t.Parallel()

	var tbl router.Table
	// dynamic registered first: order must come from specificity
	tbl.Add("/users/:id", http.MethodGet, named("dynamic"))
	tbl.Add("/users/profile", http.MethodGet, named("literal"))

	m := tbl.Lookup(http.MethodGet, "/users/profile")
	require.Equal(t, router.Found, m.Outcome)
	assert.Equal(t, "/users/profile", m.Route)
	assert.Empty(t, m.Params)

	m = tbl.Lookup(http.MethodGet, "/users/42")
	require.Equal(t, router.Found, m.Outcome)
	assert.Equal(t, "/users/:id", m.Route)
	assert.Equal(t, map[string]string{"id": "42"}, m.Params)
}

func TestTableGreedyLastParam(t *testing.T) {
	t.Parallel()

	var tbl router.Table
	tbl.Add("/files/:path", http.MethodGet, named("files"))

	m := tbl.Lookup(http.MethodGet, "/files/a/b/c.txt")
	require.Equal(t, router.Found, m.Outcome)
	assert.Equal(t, "a/b/c.txt", m.Params["path"])
}

func TestTableMultipleParams(t *testing.T) {
	t.Parallel()

	var tbl router.Table
	tbl.Add("/orgs/:org/repos/:repo", http.MethodGet, named("repo"))

	m := tbl.Lookup(http.MethodGet, "/orgs/acme/repos/tools/cli")
	require.Equal(t, router.Found, m.Outcome)
	assert.Equal(t, map[string]string{"org": "acme", "repo": "tools/cli"}, m.Params)

	m = tbl.Lookup(http.MethodGet, "/orgs/acme/x/repos/tools")
	assert.Equal(t, router.NotFound, m.Outcome)
}

func TestTableMethodNotAllowed(t *testing.T) {
	t.Parallel()

	var tbl router.Table
	tbl.Add("/data", http.MethodGet, named("get"))
	tbl.Add("/data", http.MethodPost, named("post"))

	m := tbl.Lookup(http.MethodPut, "/data")
	assert.Equal(t, router.MethodNotAllowed, m.Outcome)
	assert.ElementsMatch(t, []string{"GET", "POST"}, m.Allowed)
	assert.Nil(t, m.Handler)
}

func TestTableGetFallsThrough(t *testing.T) {
	t.Parallel()

	var tbl router.Table
	tbl.Add("/items/special", http.MethodPost, named("post-special"))
	tbl.Add("/items/:id", http.MethodGet, named("get-item"))
	tbl.Add("/only-post", http.MethodPost, named("only-post"))

	// the literal route lacks GET, so the less specific one answers
	m := tbl.Lookup(http.MethodGet, "/items/special")
	require.Equal(t, router.Found, m.Outcome)
	assert.Equal(t, "/items/:id", m.Route)
	assert.Equal(t, "special", m.Params["id"])

	// with nothing else matching GET ends as not found, never 405
	assert.Equal(t, router.NotFound, tbl.Lookup(http.MethodGet, "/only-post").Outcome)
	assert.Equal(t, router.NotFound, tbl.Lookup(http.MethodHead, "/only-post").Outcome)
	assert.Equal(t, router.MethodNotAllowed, tbl.Lookup(http.MethodDelete, "/only-post").Outcome)
}

func TestTableHeadUsesGet(t *testing.T) {
	t.Parallel()

	var tbl router.Table
	tbl.Add("/page", http.MethodGet, named("get"))

	m := tbl.Lookup(http.MethodHead, "/page")
	assert.Equal(t, router.Found, m.Outcome)
	assert.NotNil(t, m.Handler)
}

func TestTableInPlaceUpdate(t *testing.T) {
	t.Parallel()

	var tbl router.Table
	tbl.Add("/a", http.MethodGet, named("first"))
	tbl.Add("/:x", http.MethodGet, named("dyn"))
	tbl.Add("/a", http.MethodGet, named("second"))
	tbl.Add("/a", "post", named("post"))

	assert.Equal(t, []string{"/a", "/:x"}, tbl.Templates())
	assert.Equal(t, []router.Route{
		{Method: "GET", Pattern: "/a"},
		{Method: "POST", Pattern: "/a"},
		{Method: "GET", Pattern: "/:x"},
	}, tbl.Routes())

	c := newContext(http.MethodGet, "/a")
	m := tbl.Lookup(http.MethodGet, "/a")
	require.NoError(t, m.Handler(c))
	assert.Equal(t, "second", string(c.ResponseBody()))
}

func TestTableNotFound(t *testing.T) {
	t.Parallel()

	var tbl router.Table
	assert.Equal(t, router.NotFound, tbl.Lookup(http.MethodGet, "/").Outcome)

	tbl.Add("/x", http.MethodGet, named("x"))
	assert.Equal(t, router.NotFound, tbl.Lookup(http.MethodGet, "/y").Outcome)
	assert.Equal(t, router.NotFound, tbl.Lookup(http.MethodGet, "/x/").Outcome)
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "found", router.Found.String())
	assert.Equal(t, "not_found", router.NotFound.String())
	assert.Equal(t, "method_not_allowed", router.MethodNotAllowed.String())
}
