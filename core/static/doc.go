// Package static answers GET and HEAD requests from a directory before they
// reach the router.
//
// A Resolver either fully answers a request and returns true, or returns
// false to let normal dispatch continue. Dir serves files with their MIME
// type, Last-Modified and Content-Length, serves a directory's index
// document, and answers 403 for paths escaping the root. A missing file falls
// through to the router unless the request is under the resolver's prefix,
// in which case it is a 404.
//
//	assets, err := static.NewDir("./public", static.WithPrefix("/assets"))
//	if err != nil {
//		return err
//	}
//	srv := server.New(":8080", server.WithStatic(assets))
package static
