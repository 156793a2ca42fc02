// Package sample provides the verification endpoint served over HTTP/3.
package sample

import (
	"io"
	"net/http"
)

const (
	// BasePath is the path prefix of the sample endpoints.
	BasePath = "/sample"

	// HelloWorldPath answers GET requests with HelloWorld.
	HelloWorldPath = BasePath + "/hello-world"

	// HelloWorld is the body of a successful request to HelloWorldPath.
	HelloWorld = "HELLO WORLD!"
)

// NewHandler returns the handler serving the sample endpoints.
// Unknown paths get 404 and other methods on known paths get 405.
func NewHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+HelloWorldPath, helloWorld)
	return mux
}

func helloWorld(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, HelloWorld)
}
