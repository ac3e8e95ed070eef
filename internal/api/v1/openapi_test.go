package apiv1

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The served OpenAPI document must stay valid and must describe every route
// RegisterHandlers wires up.
func TestOpenAPIDocumentIsValid(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../../public/docs/v1/openapi.yml")
	require.NoError(t, err)

	require.NoError(t, doc.Validate(context.Background()))

	assert.Equal(t, "PlanPort API", doc.Info.Title)

	for _, path := range []string{
		"/ping",
		"/plans",
		"/plans/{id}",
		"/my-plan",
		"/my-plan/history",
		"/purchase",
		"/cancel",
		"/alerts",
		"/alerts/{id}/read",
		"/usage",
		"/recommendation",
		"/account",
	} {
		assert.NotNil(t, doc.Paths.Find(path), "path %s missing from openapi.yml", path)
	}
}
