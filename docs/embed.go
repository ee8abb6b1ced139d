package docs

import _ "embed"

//go:embed dashboard-api.openapi.yaml
var embeddedDashboardOpenAPI []byte

//go:embed swagger.html
var embeddedDashboardSwaggerHTML []byte

// DashboardOpenAPI содержит OpenAPI-спецификацию dashboard API.
var DashboardOpenAPI = embeddedDashboardOpenAPI

// DashboardSwaggerHTML содержит HTML-страницу с Swagger UI.
var DashboardSwaggerHTML = embeddedDashboardSwaggerHTML
