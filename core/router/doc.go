// Package router matches requests to handlers by path pattern and method and
// runs the full dispatch pipeline: interceptors, the route handler, and
// exception handling.
//
// Routes are ordered by specificity rather than registration order: a
// template with more literal segments wins over one with fewer, and among
// equals the one with fewer parameters wins. Registration order breaks the
// remaining ties.
//
//	r := router.New(router.WithLogger(log))
//	r.Get("/users/profile", profile)
//	r.Get("/users/:id", showUser)   // GET /users/42 -> id=42
//	r.Get("/files/:path", download) // GET /files/a/b.txt -> path=a/b.txt
//
// A path that matches with a method the route does not register answers 405
// with an Allow header, except for GET and HEAD which keep scanning less
// specific routes and answer 404 if none accepts them. HEAD falls back to a
// route's GET handler.
//
// Handler errors are offered to the exception dispatcher in registration
// order. Unclaimed errors and recovered panics are logged with full detail and
// answered with a generic 500 page.
package router
