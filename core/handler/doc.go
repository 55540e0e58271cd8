// Package handler defines the per-request Context shared by interceptors and
// route handlers, along with the handler function types.
//
// Request accessors (body, query, cookies, form values) are computed lazily
// and cached. Response mutators only record state; the connection session
// serializes the response after dispatch completes, either from the buffered
// body, from a reader set with SetBodyReader, or by invoking a streaming
// callback registered with Chunked.
//
//	func show(c *handler.Context) error {
//		id, _ := c.Param("id")
//		return c.JSON(http.StatusOK, map[string]string{"id": id})
//	}
package handler
