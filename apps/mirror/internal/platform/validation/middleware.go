// Package validation checks inbound requests against the OpenAPI document.
package validation

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// Problem is the 4xx body written for a rejected request. Location names the
// offending part, e.g. "path:id" or "body".
type Problem struct {
	Error    string `json:"error"`
	Location string `json:"location,omitempty"`
}

// New loads document and returns a Gin middleware enforcing it. Paths the
// document does not describe, such as /metrics, pass through; a described
// path hit with an undeclared method is answered 405.
func New(document []byte) (gin.HandlerFunc, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(document)
	if err != nil {
		return nil, fmt.Errorf("load openapi: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi: %w", err)
	}
	// Match on path alone so the server's own host and port never matter.
	doc.Servers = nil

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("openapi router: %w", err)
	}
	opts := &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc}

	return func(c *gin.Context) {
		route, params, err := router.FindRoute(c.Request)
		switch {
		case errors.Is(err, routers.ErrMethodNotAllowed):
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, Problem{Error: err.Error()})
			return
		case err != nil:
			c.Next()
			return
		}

		err = openapi3filter.ValidateRequest(c.Request.Context(), &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: params,
			Route:      route,
			Options:    opts,
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, Problem{Error: err.Error(), Location: location(err)})
			return
		}
		c.Next()
	}, nil
}

func location(err error) string {
	var re *openapi3filter.RequestError
	if !errors.As(err, &re) {
		return ""
	}
	switch {
	case re.Parameter != nil:
		return re.Parameter.In + ":" + re.Parameter.Name
	case re.RequestBody != nil:
		return "body"
	}
	return ""
}
