// Package server implements the demo's single-request HTTP handler and the
// accept loop that dispatches every connection to a thread pool.
package server

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"
)

// DefaultBufferSize is how many bytes of a request are read.
const DefaultBufferSize = 512

const (
	statusOK       = "HTTP/1.1 200 OK\r\n\r\n"
	statusNotFound = "HTTP/1.1 404 NOT FOUND\r\n\r\n"

	helloPage    = "hello.html"
	notFoundPage = "404.html"
)

var (
	requestRoot  = []byte("GET / HTTP/1.1\r\n")
	requestSleep = []byte("GET /sleep HTTP/1.1\r\n")
)

// Route names the response chosen for a request.
type Route string

const (
	RouteHello    Route = "hello"
	RouteSleep    Route = "sleep"
	RouteNotFound Route = "not_found"
)

type response struct {
	status string
	page   string
}

var responses = map[Route]response{
	RouteHello:    {statusOK, helloPage},
	RouteSleep:    {statusOK, helloPage},
	RouteNotFound: {statusNotFound, notFoundPage},
}

// Match returns the route for the raw bytes of a request. Only the request
// line is inspected, by prefix, so headers that follow do not matter.
func Match(request []byte) Route {
	switch {
	case bytes.HasPrefix(request, requestRoot):
		return RouteHello
	case bytes.HasPrefix(request, requestSleep):
		return RouteSleep
	default:
		return RouteNotFound
	}
}

// Handler answers one request per connection. It is not an HTTP server:
// it reads a single chunk, matches the request line, and writes a status
// line followed by a page. There are no response headers.
type Handler struct {
	// FS holds hello.html and 404.html. Pages are read on every request.
	FS fs.FS

	// Sleep is how long GET /sleep stalls before answering.
	Sleep time.Duration

	// BufferSize caps the bytes read from the request. Zero means
	// DefaultBufferSize.
	BufferSize int
}

// Serve reads one request from rw and writes the response.
func (h Handler) Serve(rw io.ReadWriter) error {
	_, err := h.serve(rw)
	return err
}

func (h Handler) serve(rw io.ReadWriter) (Route, error) {
	size := h.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}

	buf := make([]byte, size)
	n, err := rw.Read(buf)
	// a peer that closed without sending anything still gets the 404 page
	if err != nil && !errors.Is(err, io.EOF) {
		return RouteNotFound, fmt.Errorf("read request: %w", err)
	}

	route := Match(buf[:n])
	if route == RouteSleep {
		time.Sleep(h.Sleep)
	}

	resp := responses[route]
	contents, err := fs.ReadFile(h.FS, resp.page)
	if err != nil {
		return route, fmt.Errorf("read %s: %w", resp.page, err)
	}

	w := bufio.NewWriterSize(rw, len(resp.status)+len(contents))
	if _, err := w.WriteString(resp.status); err != nil {
		return route, fmt.Errorf("write response: %w", err)
	}
	if _, err := w.Write(contents); err != nil {
		return route, fmt.Errorf("write response: %w", err)
	}
	if err := w.Flush(); err != nil {
		return route, fmt.Errorf("flush response: %w", err)
	}

	return route, nil
}
