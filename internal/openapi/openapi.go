// Package openapi describes the HTTP API as an OpenAPI 3.0 document.
// The API surface is small and fixed, so the document is written out
// by hand instead of generated.
package openapi

// Spec is an OpenAPI 3.0 document. Only the subset of the format the
// API needs is modeled.
type Spec struct {
	OpenAPI    string               `json:"openapi" yaml:"openapi"`
	Info       Info                 `json:"info" yaml:"info"`
	Paths      map[string]*PathItem `json:"paths" yaml:"paths"`
	Components *Components          `json:"components,omitempty" yaml:"components,omitempty"`
}

// Info identifies the API.
type Info struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version" yaml:"version"`
}

// PathItem holds the operations available on one path.
type PathItem struct {
	Get    *Operation `json:"get,omitempty" yaml:"get,omitempty"`
	Post   *Operation `json:"post,omitempty" yaml:"post,omitempty"`
	Put    *Operation `json:"put,omitempty" yaml:"put,omitempty"`
	Delete *Operation `json:"delete,omitempty" yaml:"delete,omitempty"`
}

// Operation describes one method on one path.
type Operation struct {
	Summary     string               `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	OperationID string               `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Tags        []string             `json:"tags,omitempty" yaml:"tags,omitempty"`
	Parameters  []*Parameter         `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody         `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]*Response `json:"responses" yaml:"responses"`
}

// Parameter describes a path or query parameter.
type Parameter struct {
	Name        string  `json:"name" yaml:"name"`
	In          string  `json:"in" yaml:"in"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool    `json:"required,omitempty" yaml:"required,omitempty"`
	Schema      *Schema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// RequestBody describes an operation's request payload.
type RequestBody struct {
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool                  `json:"required,omitempty" yaml:"required,omitempty"`
	Content     map[string]*MediaType `json:"content" yaml:"content"`
}

// Response describes one status code's payload.
type Response struct {
	Description string                `json:"description" yaml:"description"`
	Content     map[string]*MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// MediaType binds a schema to a content type.
type MediaType struct {
	Schema *Schema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Components holds the shared schema definitions.
type Components struct {
	Schemas         map[string]*Schema         `json:"schemas,omitempty" yaml:"schemas,omitempty"`
	SecuritySchemes map[string]*SecurityScheme `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`
}

// SecurityScheme describes how callers authenticate.
type SecurityScheme struct {
	Type         string `json:"type" yaml:"type"`
	Scheme       string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	BearerFormat string `json:"bearerFormat,omitempty" yaml:"bearerFormat,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Schema is a JSON schema fragment.
type Schema struct {
	Ref         string             `json:"$ref,omitempty" yaml:"$ref,omitempty"`
	Type        string             `json:"type,omitempty" yaml:"type,omitempty"`
	Format      string             `json:"format,omitempty" yaml:"format,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Required    []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty" yaml:"enum,omitempty"`
	Example     any                `json:"example,omitempty" yaml:"example,omitempty"`
}

func ref(name string) *Schema {
	return &Schema{Ref: "#/components/schemas/" + name}
}

func jsonBody(description string, schema *Schema) *RequestBody {
	return &RequestBody{
		Description: description,
		Required:    true,
		Content:     map[string]*MediaType{"application/json": {Schema: schema}},
	}
}

func jsonResponse(description string, schema *Schema) *Response {
	return &Response{
		Description: description,
		Content:     map[string]*MediaType{"application/json": {Schema: schema}},
	}
}

func errorResponse(description string) *Response {
	return jsonResponse(description, ref("Error"))
}

// NewSpec builds the API document. The version is the server build
// version, stamped so clients can tell deployments apart.
func NewSpec(version string) *Spec {
	if version == "" {
		version = "dev"
	}

	return &Spec{
		OpenAPI: "3.0.0",
		Info: Info{
			Title: "Rule Tree API",
			Description: "Validation, compilation and evaluation of rule tree documents. " +
				"Deployments may require a bearer token on the /api/v1 routes.",
			Version: version,
		},
		Paths:      paths(),
		Components: components(),
	}
}

func paths() map[string]*PathItem {
	idParam := &Parameter{
		Name:        "id",
		In:          "path",
		Description: "Rule set id",
		Required:    true,
		Schema:      &Schema{Type: "string", Format: "uuid"},
	}
	listParams := []*Parameter{
		{Name: "limit", In: "query", Description: "Page size, capped at 100", Schema: &Schema{Type: "integer"}},
		{Name: "offset", In: "query", Description: "Rows to skip", Schema: &Schema{Type: "integer"}},
		{Name: "page", In: "query", Description: "1-based page number, an alternative to offset", Schema: &Schema{Type: "integer"}},
		{Name: "include_disabled", In: "query", Description: "Include soft-disabled rule sets", Schema: &Schema{Type: "boolean"}},
	}

	return map[string]*PathItem{
		"/healthz": {
			Get: &Operation{
				Summary:     "Liveness probe",
				OperationID: "liveness",
				Tags:        []string{"ops"},
				Responses: map[string]*Response{
					"200": {Description: "Server is alive"},
				},
			},
		},
		"/readyz": {
			Get: &Operation{
				Summary:     "Readiness probe",
				OperationID: "readiness",
				Tags:        []string{"ops"},
				Responses: map[string]*Response{
					"200": {Description: "All critical backends are reachable"},
					"503": {Description: "A critical backend is down"},
				},
			},
		},
		"/api/v1/validate": {
			Post: &Operation{
				Summary: "Validate a document",
				Description: "Checks a rule tree document, a single tree or a batch, and reports " +
					"every finding. Findings are data, not HTTP errors; only an unreadable " +
					"request fails the call.",
				OperationID: "validateDocument",
				Tags:        []string{"core"},
				RequestBody: jsonBody("The raw document", &Schema{
					Type:        "object",
					Description: "A rule tree or a batch document",
				}),
				Responses: map[string]*Response{
					"200": jsonResponse("Validation findings", ref("ValidateResult")),
					"400": errorResponse("Empty or unreadable body"),
				},
			},
		},
		"/api/v1/compile": {
			Post: &Operation{
				Summary:     "Compile a document",
				Description: "Compiles one tree, given as JSON or as a RuleQL expression, to the named target.",
				OperationID: "compileDocument",
				Tags:        []string{"core"},
				RequestBody: jsonBody("The compile request", ref("CompileRequest")),
				Responses: map[string]*Response{
					"200": jsonResponse("The compiled expression", ref("CompileResult")),
					"400": errorResponse("Invalid request shape"),
					"422": errorResponse("The document failed validation"),
				},
			},
		},
		"/api/v1/evaluate": {
			Post: &Operation{
				Summary:     "Evaluate rows against a tree",
				Description: "Filters the given rows through the tree in process and reports a verdict per row.",
				OperationID: "evaluateDocument",
				Tags:        []string{"core"},
				RequestBody: jsonBody("The evaluate request", ref("EvaluateRequest")),
				Responses: map[string]*Response{
					"200": jsonResponse("Per-row verdicts in input order", ref("EvaluateResult")),
					"400": errorResponse("Invalid request shape"),
					"422": errorResponse("The tree failed validation"),
				},
			},
		},
		"/api/v1/rulesets": {
			Post: &Operation{
				Summary:     "Create a rule set",
				OperationID: "createRuleSet",
				Tags:        []string{"rulesets"},
				RequestBody: jsonBody("The rule set to store", ref("CreateRuleSet")),
				Responses: map[string]*Response{
					"201": jsonResponse("The stored rule set", ref("RuleSet")),
					"400": errorResponse("Invalid request shape"),
					"409": errorResponse("The name is already taken"),
					"422": errorResponse("The document failed validation"),
				},
			},
			Get: &Operation{
				Summary:     "List rule sets",
				OperationID: "listRuleSets",
				Tags:        []string{"rulesets"},
				Parameters:  listParams,
				Responses: map[string]*Response{
					"200": jsonResponse("One page of rule sets", ref("RuleSetPage")),
				},
			},
		},
		"/api/v1/rulesets/{id}": {
			Get: &Operation{
				Summary:     "Fetch a rule set",
				OperationID: "getRuleSet",
				Tags:        []string{"rulesets"},
				Parameters:  []*Parameter{idParam},
				Responses: map[string]*Response{
					"200": jsonResponse("The stored rule set", ref("RuleSet")),
					"404": errorResponse("No rule set with that id"),
				},
			},
			Put: &Operation{
				Summary:     "Update a rule set",
				Description: "Omitted fields keep their stored values. A new document is validated before it replaces the old one.",
				OperationID: "updateRuleSet",
				Tags:        []string{"rulesets"},
				Parameters:  []*Parameter{idParam},
				RequestBody: jsonBody("The fields to change", ref("UpdateRuleSet")),
				Responses: map[string]*Response{
					"200": jsonResponse("The updated rule set", ref("RuleSet")),
					"404": errorResponse("No rule set with that id"),
					"409": errorResponse("The name is already taken"),
					"422": errorResponse("The document failed validation"),
				},
			},
			Delete: &Operation{
				Summary:     "Delete a rule set",
				OperationID: "deleteRuleSet",
				Tags:        []string{"rulesets"},
				Parameters:  []*Parameter{idParam},
				Responses: map[string]*Response{
					"204": {Description: "Deleted"},
					"404": errorResponse("No rule set with that id"),
				},
			},
		},
		"/api/v1/rulesets/{id}/compile": {
			Post: &Operation{
				Summary:     "Compile a stored rule set",
				Description: "Compiles the stored document. An empty body compiles to sql with the server defaults.",
				OperationID: "compileRuleSet",
				Tags:        []string{"rulesets"},
				Parameters:  []*Parameter{idParam},
				RequestBody: jsonBody("Target and options", ref("CompileRuleSetRequest")),
				Responses: map[string]*Response{
					"200": jsonResponse("The compiled expression", ref("CompileResult")),
					"404": errorResponse("No rule set with that id"),
					"422": errorResponse("The stored document failed validation"),
				},
			},
		},
	}
}

func components() *Components {
	compileOptions := &Schema{
		Type:        "object",
		Description: "Per-request compiler knobs. Omitted fields keep the server defaults.",
		Properties: map[string]*Schema{
			"parameterized":     {Type: "boolean", Description: "Emit placeholders and a separate argument list"},
			"dialect":           {Type: "string", Enum: []string{"postgres", "sqlite"}},
			"reverse_operators": {Type: "boolean", Description: "Rewrite negated operators instead of wrapping in NOT"},
		},
	}

	ruleSetFields := map[string]*Schema{
		"id":          {Type: "string", Format: "uuid"},
		"name":        {Type: "string"},
		"description": {Type: "string"},
		"document":    {Type: "object", Description: "The stored rule tree document"},
		"disabled":    {Type: "boolean"},
		"created_at":  {Type: "string", Format: "date-time"},
		"updated_at":  {Type: "string", Format: "date-time"},
	}

	return &Components{
		SecuritySchemes: map[string]*SecurityScheme{
			"bearerAuth": {
				Type:         "http",
				Scheme:       "bearer",
				BearerFormat: "JWT",
				Description:  "Required on /api/v1 routes when the deployment enables auth",
			},
		},
		Schemas: map[string]*Schema{
			"ValidateResult": {
				Type: "object",
				Properties: map[string]*Schema{
					"valid":        {Type: "boolean"},
					"trees":        {Type: "integer", Description: "Number of trees in the document"},
					"errors":       {Type: "array", Items: ref("NodeError")},
					"deprecations": {Type: "array", Items: ref("DeprecationNote")},
				},
			},
			"NodeError": {
				Type:        "object",
				Description: "One validation finding tied to the node that caused it",
				Properties: map[string]*Schema{
					"node_id": {Type: "string"},
					"kind":    {Type: "string", Example: "unknown_operator"},
					"message": {Type: "string"},
				},
				Required: []string{"kind", "message"},
			},
			"DeprecationNote": {
				Type:        "object",
				Description: "A legacy wire construct met during decoding",
				Properties: map[string]*Schema{
					"node_id": {Type: "string"},
					"key":     {Type: "string"},
					"message": {Type: "string"},
				},
				Required: []string{"message"},
			},
			"CompileRequest": {
				Type:        "object",
				Description: "Exactly one of tree and ruleql carries the document",
				Properties: map[string]*Schema{
					"tree":    {Type: "object", Description: "The rule tree as JSON"},
					"ruleql":  {Type: "string", Example: `AGE >= 18 AND name LIKE "A%"`},
					"target":  {Type: "string", Enum: []string{"sql", "mongo", "eval"}},
					"options": compileOptions,
				},
				Required: []string{"target"},
			},
			"CompileResult": {
				Type: "object",
				Properties: map[string]*Schema{
					"target":     {Type: "string"},
					"expression": {Type: "string", Description: "The sql or eval expression"},
					"args":       {Type: "array", Items: &Schema{}, Description: "Arguments for a parameterized expression"},
					"filter":     {Type: "object", Description: "The mongo filter document"},
					"cached":     {Type: "boolean", Description: "Whether the result came from the compile cache"},
				},
				Required: []string{"target"},
			},
			"EvaluateRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"tree": {Type: "object", Description: "The rule tree as JSON"},
					"rows": {Type: "array", Items: &Schema{Type: "object"}, Description: "At most 10000 rows"},
				},
				Required: []string{"tree"},
			},
			"EvaluateResult": {
				Type: "object",
				Properties: map[string]*Schema{
					"results": {Type: "array", Items: &Schema{Type: "boolean"}},
					"matched": {Type: "integer"},
				},
				Required: []string{"results", "matched"},
			},
			"CreateRuleSet": {
				Type: "object",
				Properties: map[string]*Schema{
					"name":        {Type: "string"},
					"description": {Type: "string"},
					"document":    {Type: "object"},
					"disabled":    {Type: "boolean"},
				},
				Required: []string{"name", "document"},
			},
			"UpdateRuleSet": {
				Type:        "object",
				Description: "Omitted fields keep their stored values",
				Properties: map[string]*Schema{
					"name":        {Type: "string"},
					"description": {Type: "string"},
					"document":    {Type: "object"},
					"disabled":    {Type: "boolean"},
				},
			},
			"CompileRuleSetRequest": {
				Type: "object",
				Properties: map[string]*Schema{
					"target":  {Type: "string", Enum: []string{"sql", "mongo", "eval"}},
					"options": compileOptions,
				},
			},
			"RuleSet": {
				Type:       "object",
				Properties: ruleSetFields,
				Required:   []string{"id", "name", "document"},
			},
			"RuleSetPage": {
				Type: "object",
				Properties: map[string]*Schema{
					"data":     {Type: "array", Items: ref("RuleSet")},
					"limit":    {Type: "integer"},
					"offset":   {Type: "integer"},
					"has_next": {Type: "boolean"},
				},
				Required: []string{"data", "limit", "offset", "has_next"},
			},
			"Error": {
				Type: "object",
				Properties: map[string]*Schema{
					"error":   {Type: "string"},
					"details": {Type: "object", Description: "Per-field input validation messages"},
					"errors":  {Type: "array", Items: ref("NodeError"), Description: "Tree validation findings"},
				},
				Required: []string{"error"},
			},
		},
	}
}
